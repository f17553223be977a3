package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"quicksend/internal/config"
	"quicksend/internal/domain/services"
	"quicksend/internal/httputil"
	"quicksend/internal/repository/postgres"
	"quicksend/internal/service/groups"
)

// seedGroup is a sample group; parent refers to another seed by name
type seedGroup struct {
	name   string
	parent string
	pinned bool
	hidden bool
}

var sampleGroups = []seedGroup{
	{name: "Documents"},
	{name: "Contracts", parent: "Documents"},
	{name: "Invoices", parent: "Documents", pinned: true},
	{name: "Photos"},
	{name: "Screenshots", parent: "Photos"},
	{name: "Private", hidden: true},
}

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop the groups table before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only create the table and root group")
	clearData := flag.Bool("clear-data", false, "Delete every group except root (keep schema)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: cannot run destructive operations (--drop-tables or --clear-data) in production")
	}

	logger, closeLog := config.NewLogger(cfg, "quicksend-seed")
	defer closeLog()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewGroupRepository(&postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	})

	if *dropTables {
		if err := repo.DropTable(ctx); err != nil {
			log.Fatalf("Failed to drop table: %v", err)
		}
		logger.Info("groups table dropped")
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	if err := repo.EnsureRoot(ctx); err != nil {
		log.Fatalf("Failed to create root group: %v", err)
	}
	logger.Info("schema ready", "table_prefix", cfg.TablePrefix)

	if *schemaOnly {
		return
	}

	removed, err := repo.ClearNonRoot(ctx)
	if err != nil {
		log.Fatalf("Failed to clear groups: %v", err)
	}
	logger.Info("existing groups cleared", "removed", removed)
	if *clearData {
		return
	}

	svc := groups.NewService(repo, postgres.NewTransactionManager(pool, logger), true, logger)
	host := httputil.Viewer{IsHost: true, RemoteAddr: "seed"}

	ids := map[string]string{}
	for _, g := range sampleGroups {
		req := &services.CreateGroupRequest{Name: g.name}
		if g.parent != "" {
			parentID := ids[g.parent]
			req.ParentID = &parentID
		}
		id, err := svc.Create(ctx, host, req)
		if err != nil {
			log.Fatalf("Failed to create group %q: %v", g.name, err)
		}
		ids[g.name] = id

		if g.pinned {
			pinned := true
			if err := svc.Update(ctx, host, id, &services.UpdateGroupRequest{IsPinned: &pinned}); err != nil {
				log.Fatalf("Failed to pin group %q: %v", g.name, err)
			}
		}
		if g.hidden {
			if err := svc.SetHidden(ctx, host, id, true); err != nil {
				log.Fatalf("Failed to hide group %q: %v", g.name, err)
			}
		}
	}

	logger.Info("seeding complete", "groups", len(sampleGroups))
}
