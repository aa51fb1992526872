package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// exitOnErr logs msg with err and exits when err is set.
func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}
	slog.Error(msg, slog.Any("error", err))
	stopProfiling()
	os.Exit(1)
}

func printResult(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		// round trip through json so yaml keys follow the json tags
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
