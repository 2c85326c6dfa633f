// repairctl: консольный инструмент обслуживания хранилища заявок:
// инициализация, импорт выгрузок, резервные копии, экспорт и просмотр.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"repairdesk/db"
	"repairdesk/db/migrations"
	"repairdesk/db/schema"
	"repairdesk/internal/config"
	"repairdesk/internal/export"
	"repairdesk/internal/importer"
	"repairdesk/internal/logger"
)

const usage = `Usage: repairctl <command> [flags]

Commands:
  init           create the database from scratch (seed users if no import file)
  import         import users, requests and comments from .xlsx files
  backup         copy the database file into the backup directory
  export         dump data (--format json|csv)
  stats          print aggregate request statistics
  list           print all requests
  list-comments  print all comments
  list-users     print all users

Common flags:
  --db PATH            database file (default from DB_PATH)
  --users-file PATH    users workbook
  --requests-file PATH requests workbook
  --comments-file PATH comments workbook
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	cmd, args := os.Args[1], os.Args[2:]
	if err := run(cmd, args, cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, cfg *config.Config, log *zap.Logger) error {
	switch cmd {
	case "init":
		return runInit(args, cfg, log)
	case "import":
		return runImport(args, cfg, log)
	case "backup":
		return runBackup(args, cfg)
	case "export":
		return runExport(args, cfg, log)
	case "stats":
		return runStats(args, cfg, log)
	case "list":
		return runList(args, cfg, log)
	case "list-comments":
		return runListComments(args, cfg, log)
	case "list-users":
		return runListUsers(args, cfg, log)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// commonFlags регистрирует флаги, общие для всех команд.
func commonFlags(fs *flag.FlagSet, cfg *config.Config) (dbPath, usersFile, requestsFile, commentsFile *string) {
	dbPath = fs.String("db", cfg.DBPath, "database file")
	usersFile = fs.String("users-file", cfg.UsersFile, "users workbook")
	requestsFile = fs.String("requests-file", cfg.RequestsFile, "requests workbook")
	commentsFile = fs.String("comments-file", cfg.CommentsFile, "comments workbook")
	return
}

// openStore открывает хранилище, применяет миграции и проверку схемы.
func openStore(dbPath string, log *zap.Logger) (*db.Storage, *sqlx.DB, error) {
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Run(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := schema.Ensure(ctx, conn, log); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return db.NewStorage(conn), conn, nil
}

func runInit(args []string, cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dbPath, usersFile, requestsFile, commentsFile := commonFlags(fs, cfg)
	fs.Parse(args)

	conn, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	// init пересоздает базу с нуля, включая таблицы,
	// оставшиеся от старых версий схемы.
	if err := migrations.Recreate(conn); err != nil {
		return err
	}
	ctx := context.Background()
	if err := schema.Ensure(ctx, conn, log); err != nil {
		return err
	}
	store := db.NewStorage(conn)

	if _, err := os.Stat(*usersFile); os.IsNotExist(err) {
		// Выгрузок нет: заводим стартовый набор учетных записей.
		if err := store.CreateDefaultUsers(ctx, cfg.BcryptCost); err != nil {
			return err
		}
		fmt.Printf("Database initialized at %s with default users\n", *dbPath)
		return nil
	}

	im := importer.New(store, log, cfg.BcryptCost)
	result, err := im.Run(ctx, *usersFile, *requestsFile, *commentsFile)
	if err != nil {
		return err
	}
	fmt.Printf("Database initialized at %s\n", *dbPath)
	printImportResult(result)
	return nil
}

func runImport(args []string, cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath, usersFile, requestsFile, commentsFile := commonFlags(fs, cfg)
	fs.Parse(args)

	store, conn, err := openStore(*dbPath, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	im := importer.New(store, log, cfg.BcryptCost)
	result, err := im.Run(context.Background(), *usersFile, *requestsFile, *commentsFile)
	if err != nil {
		return err
	}
	printImportResult(result)
	return nil
}

func printImportResult(r *importer.Result) {
	fmt.Println("Import finished:")
	fmt.Printf("  users:    %d\n", r.Users)
	fmt.Printf("  requests: %d\n", r.Requests)
	fmt.Printf("  comments: %d\n", r.Comments)
}

func runBackup(args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "database file")
	backupDir := fs.String("backup-dir", cfg.BackupDir, "backup directory")
	fs.Parse(args)

	dst, err := export.Backup(*dbPath, *backupDir)
	if err != nil {
		return err
	}
	fmt.Println("Backup created:", dst)
	return nil
}

func runExport(args []string, cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "database file")
	format := fs.String("format", "json", "export format: json or csv")
	out := fs.String("out", "", "output file (default: exports dir, timestamped)")
	fs.Parse(args)

	store, conn, err := openStore(*dbPath, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	path := *out
	if path == "" {
		if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
			return err
		}
		name := fmt.Sprintf("export_%s.%s", time.Now().Format("20060102_150405"), *format)
		path = filepath.Join(cfg.ExportDir, name)
	}

	ctx := context.Background()
	switch *format {
	case "json":
		err = export.JSON(ctx, store, path)
	case "csv":
		err = export.CSV(ctx, store, path)
	default:
		return fmt.Errorf("unknown format: %s (want json or csv)", *format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Export written:", path)
	return nil
}

func runStats(args []string, cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "database file")
	fs.Parse(args)

	store, conn, err := openStore(*dbPath, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	stats, err := store.GetStatistics(ctx)
	if err != nil {
		return err
	}

	tables, err := store.TableNames(ctx)
	if err != nil {
		return err
	}
	users, err := store.CountUsers(ctx)
	if err != nil {
		return err
	}
	comments, err := store.CountComments(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Database: %s (%d tables, %d users, %d comments)\n",
		*dbPath, len(tables), users, comments)

	fmt.Println("Request statistics")
	fmt.Printf("  total:      %d\n", stats.TotalRequests)
	fmt.Printf("  completed:  %d\n", stats.CompletedRequests)
	fmt.Printf("  in process: %d\n", stats.InProcess)
	fmt.Printf("  avg days:   %.1f\n", stats.AvgDays)
	fmt.Println("By status:")
	for _, s := range stats.StatusDistribution {
		fmt.Printf("  %-20s %d\n", s.Status, s.Count)
	}
	fmt.Println("By equipment type:")
	for _, tc := range stats.TypeDistribution {
		fmt.Printf("  %-20s %d\n", tc.EquipmentType, tc.Count)
	}
	fmt.Println("By problem type:")
	for _, p := range stats.ProblemStats {
		fmt.Printf("  %-20s %d (%.1f%%)\n", p.ProblemType, p.Count, p.Percentage)
	}

	masters, err := store.GetMastersStatistics(ctx)
	if err != nil {
		return err
	}
	if len(masters) > 0 {
		fmt.Println("Masters:")
		for _, m := range masters {
			avg := "-"
			if m.AvgCompletionDays != nil {
				avg = fmt.Sprintf("%.1f", *m.AvgCompletionDays)
			}
			fmt.Printf("  %-25s total=%d in_progress=%d ready=%d completed=%d avg_days=%s\n",
				m.MasterName, m.TotalRequests, m.InProgressCount, m.ReadyCount, m.CompletedCount, avg)
		}
	}
	return nil
}

func runList(args []string, cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "database file")
	status := fs.String("status", "", "filter by status name")
	fs.Parse(args)

	store, conn, err := openStore(*dbPath, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	requests, err := store.ListRequests(context.Background(), db.RequestFilter{Status: *status})
	if err != nil {
		return err
	}

	fmt.Printf("%-12s %-20s %-25s %-20s %-20s\n",
		"NUMBER", "DATE", "EQUIPMENT", "STATUS", "CLIENT")
	for _, r := range requests {
		equipment := r.EquipmentType + " " + r.EquipmentModel
		fmt.Printf("%-12s %-20s %-25.25s %-20.20s %-20.20s\n",
			r.RequestNumber, r.StartDate, equipment, r.StatusName, r.ClientName)
	}
	fmt.Printf("Total: %d\n", len(requests))
	return nil
}

func runListComments(args []string, cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("list-comments", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "database file")
	fs.Parse(args)

	store, conn, err := openStore(*dbPath, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	comments, err := store.ListComments(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("%-6s %-12s %-20s %s\n", "ID", "REQUEST", "MASTER", "MESSAGE")
	for _, c := range comments {
		fmt.Printf("%-6d %-12s %-20.20s %.50s\n",
			c.ID, c.RequestNumber, c.MasterName, c.Message)
	}
	fmt.Printf("Total: %d\n", len(comments))
	return nil
}

func runListUsers(args []string, cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("list-users", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "database file")
	fs.Parse(args)

	store, conn, err := openStore(*dbPath, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	users, err := store.GetAllUsers(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("%-6s %-30s %-12s %-15s %s\n", "ID", "NAME", "ROLE", "LOGIN", "ACTIVE")
	for _, u := range users {
		fmt.Printf("%-6d %-30.30s %-12s %-15s %v\n",
			u.ID, u.FullName, u.Role, u.Login, u.IsActive)
	}
	fmt.Printf("Total: %d\n", len(users))
	return nil
}
