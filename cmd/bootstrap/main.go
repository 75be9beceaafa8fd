// Package main 系统初始化：建表、建向量集合、写入默认摄像头
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/infrastructure/persistence/milvus"
	"cam-sentinel-ai/internal/infrastructure/persistence/postgres"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 1. PostgreSQL 建表
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("failed to init postgres: %v", err)
	}
	defer func() { _ = pgClient.Close() }()

	fmt.Println("Running database migrations...")
	if err := pgClient.DB().WithContext(ctx).AutoMigrate(
		&entity.Camera{},
		&entity.Event{},
		&entity.UsageRecord{},
		&entity.RecognizedEntity{},
		&entity.EventEntityLink{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 2. Milvus 建集合
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		log.Fatalf("failed to init milvus: %v", err)
	}
	defer func() { _ = milvusClient.Close() }()

	fmt.Println("Ensuring vector collection...")
	if err := milvus.NewRepository(milvusClient).EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure vector collection: %v", err)
	}

	// 3. 默认摄像头
	cameraID := os.Getenv("BOOTSTRAP_CAMERA_ID")
	if cameraID == "" {
		cameraID = "front_door"
	}

	cameraRepo := postgres.NewCameraRepository(pgClient)
	existing, err := cameraRepo.GetByID(ctx, cameraID)
	if err != nil {
		log.Fatalf("failed to check camera existence: %v", err)
	}

	if existing == nil {
		fmt.Printf("Creating default camera: %s...\n", cameraID)
		camera := &entity.Camera{
			ID:            cameraID,
			Name:          cameraID,
			PreferredMode: entity.ModeVideoNative,
			HasClipSource: true,
			Enabled:       true,
		}
		if err := cameraRepo.Save(ctx, camera); err != nil {
			log.Fatalf("failed to create default camera: %v", err)
		}
		fmt.Println("Default camera created.")
	} else {
		fmt.Printf("Camera %s already exists.\n", cameraID)
	}

	fmt.Println("Bootstrap completed successfully.")
}
