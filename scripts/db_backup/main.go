// Command db_backup copies the sqlite database configured for the server
// into a timestamped backup file so repeated runs never clobber each other.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ascenthq/ascent/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to the server config file")
	outDir := flag.String("out", "", "directory for the backup file (defaults to the database directory)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	dst, err := backup(cfg.DatabasePath, *outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database backed up to %s\n", dst)
}

func backup(src, outDir string) (string, error) {
	if outDir == "" {
		outDir = filepath.Dir(src)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	dst := filepath.Join(outDir, fmt.Sprintf("%s.%s.bak", filepath.Base(src), stamp))

	srcFile, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return "", err
	}
	if err := dstFile.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}

	return dst, nil
}
