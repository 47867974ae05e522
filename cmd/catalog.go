package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/shared"
)

// CatalogGet performs a raw GET against the movie database API and prints the body.
func (r *Runner) CatalogGet(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}
	if _, err := r.movies(ctx); err != nil {
		return err
	}
	if r.raw == nil {
		return fmt.Errorf("%w: catalog has no raw access", shared.ErrServiceUnavailable)
	}

	resp, err := r.raw.Raw(ctx, path)
	if err != nil {
		return err
	}
	r.logger.Debug("catalog response", "status", resp.StatusCode, "json", resp.IsJSON)

	if resp.IsJSON && cmd.Bool("pretty") {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Body, "", "  "); err == nil {
			buf.WriteByte('\n')
			_, err = r.output.Write(buf.Bytes())
			return err
		}
	}
	_, err = r.output.Write(append(resp.Body, '\n'))
	return err
}
