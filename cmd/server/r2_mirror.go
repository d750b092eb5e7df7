package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"voxelbend.ai/internal/persistence/r2s3"
)

// r2MirrorRuntime is nil-safe so callers can wire it unconditionally.
type r2MirrorRuntime struct {
	mirror *r2s3.Mirror
}

func buildR2MirrorRuntime(dataDir string, logger *log.Logger) (*r2MirrorRuntime, error) {
	if !envBool("VB_R2_MIRROR", false) {
		return nil, nil
	}
	cfg := r2s3.Config{
		Endpoint:        os.Getenv("VB_R2_ENDPOINT"),
		Bucket:          os.Getenv("VB_R2_BUCKET"),
		Region:          strings.TrimSpace(os.Getenv("VB_R2_REGION")),
		AccessKeyID:     os.Getenv("VB_R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("VB_R2_SECRET_ACCESS_KEY"),
	}
	client, err := r2s3.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("VB_R2_MIRROR=true: %w", err)
	}
	prefix := strings.TrimSpace(os.Getenv("VB_R2_PREFIX"))
	workers := envInt("VB_R2_UPLOAD_WORKERS", 2)
	return &r2MirrorRuntime{mirror: r2s3.NewMirror(client, dataDir, prefix, workers, logger)}, nil
}

func (r *r2MirrorRuntime) Enqueue(localPath string) {
	if r == nil {
		return
	}
	r.mirror.Enqueue(localPath)
}

func (r *r2MirrorRuntime) Close() {
	if r == nil {
		return
	}
	r.mirror.Close()
}

func (r *r2MirrorRuntime) Stats() *r2s3.Stats {
	if r == nil {
		return nil
	}
	st := r.mirror.Stats()
	return &st
}
