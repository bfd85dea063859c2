package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/foodshare/internal/adapter/postgres"
	"github.com/Strob0t/foodshare/internal/config"
	"github.com/Strob0t/foodshare/internal/domain/profile"
	"github.com/Strob0t/foodshare/internal/domain/reward"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	case "check-pool":
		return runAdminCheckPool(args[1:])
	case "grant-coins":
		return runAdminGrantCoins(args[1:])
	case "top":
		return runAdminTop(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: foodshare admin <command> [options]

Commands:
  migrate       Apply pending migrations and print the schema version
  rollback      Roll back the most recent migrations
  check-pool    Validate a delivery task pool file
  grant-coins   Credit power coins to a profile
  top           Print the leaderboard straight from the database
  help          Show this help message

Examples:
  foodshare admin migrate
  foodshare admin rollback --steps 1
  foodshare admin check-pool --file pool.yaml
  foodshare admin grant-coins --user 7f3c... --amount 100 --reason "launch bonus"
  foodshare admin top --role Restaurant
`)
}

func loadAdminConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Schema at version %d\n", version)
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return errors.New("--steps must be at least 1")
	}
	if !*yes {
		ok, err := confirm(fmt.Sprintf("Roll back %d migration(s)? Data in dropped tables is lost.", *steps))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Schema at version %d\n", version)
	return nil
}

func runAdminCheckPool(args []string) error {
	fs := flag.NewFlagSet("check-pool", flag.ContinueOnError)
	file := fs.String("file", "", "pool YAML file (default: built-in pool)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pool, err := loadTaskPool(*file)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFOOD\tFROM\tTO\tDISTANCE\tEARNINGS\tCOINS")
	for i := range pool.Tasks {
		t := &pool.Tasks[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n", t.ID, t.Food, t.From, t.To, t.Distance, t.Earnings, t.Coins)
	}
	return w.Flush()
}

func runAdminGrantCoins(args []string) error {
	fs := flag.NewFlagSet("grant-coins", flag.ContinueOnError)
	userID := fs.String("user", "", "profile ID (required)")
	amount := fs.Int("amount", 0, "coins to credit (required)")
	reason := fs.String("reason", "Admin grant", "reason shown in the coin history")
	ref := fs.String("ref", "", "unique reference; repeating a reference is a no-op")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("--user is required")
	}
	if *amount <= 0 {
		return errors.New("--amount must be positive")
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	reference := *ref
	if reference == "" {
		reference = "admin/" + strings.ReplaceAll(strings.ToLower(*reason), " ", "-")
	}
	tx := reward.Transaction{
		UserID:    *userID,
		Kind:      reward.KindEarn,
		Amount:    *amount,
		Reason:    *reason,
		Reference: reference,
	}
	balance, err := postgres.NewStore(pool).ApplyTransaction(ctx, &tx)
	if errors.Is(err, reward.ErrDuplicateTransaction) {
		fmt.Fprintf(os.Stderr, "Already granted (reference %s)\n", reference)
		return nil
	}
	if err != nil {
		return fmt.Errorf("grant coins: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Granted %d coins to %s, balance %d\n", *amount, *userID, balance)
	return nil
}

func runAdminTop(args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	role := fs.String("role", string(profile.RoleRestaurant), "Restaurant, Individual or Delivery")
	limit := fs.Int("limit", 10, "number of entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !profile.ValidRoles[profile.Role(*role)] {
		return fmt.Errorf("invalid role %q", *role)
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	profiles, err := postgres.NewStore(pool).TopProfiles(ctx, profile.Role(*role), *limit)
	if err != nil {
		return fmt.Errorf("top profiles: %w", err)
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tID\tNAME\tCOINS")
	for _, e := range reward.Rank(profiles) {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.Rank, e.ProfileID, e.Name, e.PowerCoins)
	}
	return w.Flush()
}

// confirm asks a yes/no question on the terminal. Without a terminal the
// answer is no, so scripts must pass --yes.
func confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		fmt.Fprintln(os.Stderr, "stdin is not a terminal; pass --yes to confirm")
		return false, nil
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
