package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"owl-haccp/common/database"
	"owl-haccp/internal/config"
	"owl-haccp/internal/evaluator"
	"owl-haccp/internal/models"
	"owl-haccp/internal/repository"

	"go.uber.org/zap"
)

// haccp-check 运维巡检工具：打印设备校准状态和未配置防虫标准的捕虫器
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 连接数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := zap.NewNop()
	today := models.DateOf(time.Now().In(cfg.Location()))

	// 1. 设备校准状态
	printHeader(fmt.Sprintf("1. Calibration status as of %s", today.Format("2006-01-02")))
	calibrationRepo := repository.NewCalibrationRepository(db, logger)
	records, err := calibrationRepo.ListCalibrationRecords(ctx)
	if err != nil {
		log.Fatalf("Failed to list calibration records: %v", err)
	}
	for _, r := range records {
		status, err := evaluator.StatusOf(r, today)
		if err != nil {
			fmt.Printf("  %-16s %-24s ERROR %v\n", r.EquipmentID, r.EquipmentName, err)
			continue
		}
		fmt.Printf("  %-16s %-24s %-9s next=%s days=%d\n",
			r.EquipmentID, r.EquipmentName, status.Status,
			status.NextCalibrationDate.Format("2006-01-02"), status.DaysRemaining)
	}
	fmt.Printf("  total: %d\n", len(records))

	// 2. 未配置标准的捕虫器（按季节）
	pestRepo := repository.NewPestCatalogRepository(db, logger)
	traps, err := pestRepo.GetTrapLocations(ctx)
	if err != nil {
		log.Fatalf("Failed to list trap locations: %v", err)
	}
	for i, season := range []models.Season{models.SeasonWinter, models.SeasonSummer} {
		printHeader(fmt.Sprintf("%d. Traps without %s pest standards", i+2, season))
		standards, err := pestRepo.GetPestStandards(ctx, season)
		if err != nil {
			log.Fatalf("Failed to load pest standards: %v", err)
		}
		matrix, err := evaluator.NewPestThresholdMatrix(standards)
		if err != nil {
			fmt.Printf("  invalid standards: %v\n", err)
			continue
		}
		missing := 0
		for _, trap := range traps {
			if matrix.EvaluateCatchCount(0, trap.ZoneGrade, trap.HazardCategory, season).Unconfigured {
				fmt.Printf("  %-16s zone=%s grade=%s category=%s\n", trap.ID, trap.ZoneID, trap.ZoneGrade, trap.HazardCategory)
				missing++
			}
		}
		fmt.Printf("  standards: %d, traps: %d, unconfigured: %d\n", matrix.Len(), len(traps), missing)
	}

	fmt.Println("\nDone.")
}

func printHeader(title string) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))
}
