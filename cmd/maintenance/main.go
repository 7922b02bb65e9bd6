package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/migrations"
	"github.com/noah-isme/sims-api/pkg/config"
	"github.com/noah-isme/sims-api/pkg/database"
	"github.com/noah-isme/sims-api/pkg/logger"
)

const usage = `usage: maintenance <command> [flags]

commands:
  roles:sync        reconcile legacy user roles with permission roles
                    --dry-run  report changes without applying them
                    --prune    remove assignments that disagree with the legacy role
  system:integrity  report data inconsistencies
                    --fix      repair fee statuses and synchronise roles
  migrate up|down   apply all pending migrations or roll back one step
`

var cliActor = models.Actor{Role: models.RoleSuperAdmin, UserAgent: "cmd/maintenance"}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "roles:sync":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "report changes without applying them")
		prune := fs.Bool("prune", false, "remove assignments that disagree with the legacy role")
		_ = fs.Parse(args)

		svc, closeDB := maintenance(cfg, logr)
		defer closeDB()
		report, err := svc.SyncRoles(ctx, service.RoleSyncOptions{DryRun: *dryRun, Prune: *prune}, cliActor)
		if err != nil {
			logr.Fatal("role sync failed", zap.Error(err))
		}
		printJSON(report)
	case "system:integrity":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		fix := fs.Bool("fix", false, "repair fee statuses and synchronise roles")
		_ = fs.Parse(args)

		svc, closeDB := maintenance(cfg, logr)
		defer closeDB()
		report, err := svc.CheckIntegrity(ctx, *fix, cliActor)
		if err != nil {
			logr.Fatal("integrity check failed", zap.Error(err))
		}
		printJSON(report)
		if len(report.Issues) > 0 && !*fix {
			os.Exit(1)
		}
	case "migrate":
		direction := database.MigrateUp
		if len(args) > 0 {
			direction = args[0]
		}
		if err := database.Migrate(cfg.Database, migrations.FS, direction, logr); err != nil {
			logr.Fatal("migration failed", zap.Error(err))
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}
}

func maintenance(cfg *config.Config, logr *zap.Logger) (*service.MaintenanceService, func()) {
	db, err := database.NewPostgres(cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	users := repository.NewUserRepository(db)
	svc := service.NewMaintenanceService(users, repository.NewIntegrityRepository(db), repository.NewFeeRepository(db), users, logr)
	return svc, func() { _ = db.Close() }
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("encode report: %v", err)
	}
}
