package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// uploadConcurrency bounds how many files move at once when several paths are
// given.
const uploadConcurrency = 4

var allowedMimes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <path>...",
	Short: "Upload one or more image files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := loadAPIKey()
		if err != nil {
			return err
		}
		private, _ := cmd.Flags().GetBool("private")
		c := newClient(baseURL(cmd), key)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(uploadConcurrency)
		for _, path := range args {
			path := path // per-iteration copy; required under go 1.21 loop semantics
			g.Go(func() error {
				if err := uploadOne(ctx, c, path, private); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().Bool("private", false, "mark the uploaded images private")
}

// uploadOne runs the three-step handshake for a single file: request a slot,
// PUT the bytes to the presigned URL, confirm the metadata.
func uploadOne(ctx context.Context, c *client, path string, private bool) error {
	mimeType, err := detectMime(path)
	if err != nil {
		return err
	}
	if !allowedMimes[mimeType] {
		return fmt.Errorf("unsupported image type %q (allowed: jpeg, png, gif, webp)", mimeType)
	}
	filename := filepath.Base(path)
	fmt.Printf("[info] uploading %s (%s)...\n", filename, mimeType)

	ticket, err := c.requestUpload(ctx, filename, mimeType)
	if err != nil {
		return err
	}
	if err := c.putObject(ctx, ticket.PresignedURL, path, mimeType); err != nil {
		return err
	}
	result, err := c.confirmUpload(ctx, confirmPayload{
		IID:      ticket.IID,
		Key:      ticket.Key,
		Filename: filename,
		MimeType: mimeType,
		Private:  private,
	})
	if err != nil {
		return err
	}

	fmt.Printf("[ok] %s -> %s\n", filename, result.URL)
	return nil
}

// detectMime sniffs the file's leading bytes and falls back to the extension.
// Sniffing catches files whose extension lies about the format.
func detectMime(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	sniffed := http.DetectContentType(buf[:n])
	if sniffed != "application/octet-stream" && !strings.HasPrefix(sniffed, "text/plain") {
		return sniffed, nil
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return byExt, nil
	}
	return sniffed, nil
}
