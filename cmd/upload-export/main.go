// Command upload-export pushes a local source export file into the
// exports bucket under the portal's dated object layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/exportfiles"
	"github.com/valorops/expense-portal/internal/logger"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("upload-export")

	var (
		bucketName string
		sourceStr  string
		filePath   string
	)
	flag.StringVar(&bucketName, "bucket", os.Getenv("EXPORTS_BUCKET"), "GCS bucket name (or set EXPORTS_BUCKET)")
	flag.StringVar(&sourceStr, "source", "", "Intake source the file belongs to (required)")
	flag.StringVar(&filePath, "file", "", "Path to the local export file (required)")
	flag.Parse()

	if bucketName == "" || sourceStr == "" || filePath == "" {
		log.Fatal().Msg("Usage: upload-export -bucket BUCKET -source SOURCE -file /path/to/export.xlsx")
	}

	source, err := domain.ParseSource(sourceStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid source")
	}

	ctx := logger.WithContext(context.Background(), log)

	objectName := exportfiles.ObjectName(source, filePath)
	log.Info().
		Str("bucket", bucketName).
		Str("object", objectName).
		Str("file", filePath).
		Msg("Uploading export file to GCS")

	uri, err := exportfiles.NewStore(bucketName).UploadFile(ctx, objectName, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", filePath, uri)
}
