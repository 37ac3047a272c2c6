package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/geo"
	"github.com/marcus/pinmap/internal/objstore"
	"github.com/marcus/pinmap/internal/output"
	"github.com/marcus/pinmap/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file|-|s3://bucket/key>",
	Short: "Import locations from a GeoJSON feature collection",
	Long: `Import locations from a GeoJSON feature collection. Each feature becomes
a new location; features with unusable geometry get the fallback point.

Use "-" to read from stdin. s3:// sources use the PINMAP_S3_* settings.`,
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		data, err := readImportSource(ctx, args[0], os.Stdin)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		report, err := sess.Store.ImportGeoJSON(ctx, data)
		if err != nil {
			if errors.Is(err, geo.ErrInvalidGeoJSON) {
				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					output.JSONError(output.ErrCodeInvalidImport, err.Error())
					return err
				}
			}
			output.Error("%v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(report)
		}
		output.Success("Imported %d location(s)", report.Imported)
		if queued := report.Imported - report.Synced; queued > 0 {
			output.Info("  %d queued for sync", queued)
		}
		if report.Failed > 0 {
			output.Warning("%d feature(s) could not be imported", report.Failed)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export locations as GeoJSON",
	Long: `Export the current location set as a GeoJSON feature collection, sorted
by name. Writes to stdout unless --out or --bucket is given.`,
	Example: `  pinmap export > locations.geojson
  pinmap export --out locations.geojson
  pinmap export --bucket maps --prefix exports`,
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")
		bucket, _ := cmd.Flags().GetString("bucket")
		prefix, _ := cmd.Flags().GetString("prefix")

		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		data, n, err := exportDocument(ctx, sess.Store)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		switch {
		case bucket != "":
			key := objstore.ExportKey(prefix, time.Now())
			if err := uploadExport(ctx, bucket, key, data); err != nil {
				output.Error("%v", err)
				return err
			}
			output.Success("Exported %d location(s) to s3://%s/%s", n, bucket, key)
		case out != "" && out != "-":
			if err := os.WriteFile(out, data, 0644); err != nil {
				output.Error("write %s: %v", out, err)
				return err
			}
			output.Success("Exported %d location(s) to %s", n, out)
		default:
			fmt.Println(string(data))
		}
		return nil
	},
}

func exportDocument(ctx context.Context, s *store.Store) ([]byte, int, error) {
	fc, err := s.ExportGeoJSON(ctx)
	if err != nil {
		return nil, 0, err
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("encode export: %w", err)
	}
	return data, len(fc.Features), nil
}

// readImportSource reads a local file, stdin ("-"), or an s3:// object.
func readImportSource(ctx context.Context, src string, stdin io.Reader) ([]byte, error) {
	switch {
	case src == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	case objstore.IsURL(src):
		bucket, key, err := objstore.ParseURL(src)
		if err != nil {
			return nil, err
		}
		client, err := newObjectClient()
		if err != nil {
			return nil, err
		}
		return client.GetGeoJSON(ctx, bucket, key)
	default:
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		return data, nil
	}
}

func uploadExport(ctx context.Context, bucket, key string, data []byte) error {
	client, err := newObjectClient()
	if err != nil {
		return err
	}
	if err := client.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	return client.PutGeoJSON(ctx, bucket, key, data)
}

func newObjectClient() (*objstore.Client, error) {
	cfg, err := objstore.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return objstore.New(cfg, slog.Default())
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	importCmd.Flags().Bool("json", false, "output the report as JSON")

	exportCmd.Flags().StringP("out", "o", "", "write to a file instead of stdout")
	exportCmd.Flags().String("bucket", "", "upload to this S3 bucket")
	exportCmd.Flags().String("prefix", "exports", "object key prefix for --bucket")
}
