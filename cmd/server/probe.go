package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ytsprites/api/internal/client"
	"github.com/ytsprites/api/internal/config"
)

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check configuration and external dependencies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cmd.Println("config: ok")

			if err := client.NewFFmpegClient(&cfg.FFmpeg).Check(ctx); err != nil {
				return err
			}
			cmd.Printf("ffmpeg: ok (%s)\n", cfg.FFmpeg.Binary)

			if cfg.Redis.Addr == "" {
				cmd.Println("redis: disabled")
			} else {
				rdb := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer rdb.Close()
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
				cmd.Println("redis: ok")
			}

			if cfg.Storage.Enabled() {
				if _, err := client.NewS3Client(ctx, &cfg.Storage); err != nil {
					return fmt.Errorf("storage: %w", err)
				}
				cmd.Printf("storage: ok (%s)\n", cfg.Storage.BucketName)
			} else {
				cmd.Println("storage: disabled")
			}
			return nil
		},
	}
}
