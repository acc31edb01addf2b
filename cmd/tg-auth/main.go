package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/gotd/td/session"
	"github.com/gotd/td/session/tdesktop"
	"github.com/mdp/qrterminal/v3"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/database"
	"github.com/blockedby/groupinviter/internal/telegram"
)

const (
	methodTData = iota + 1
	methodPhone
	methodQR
)

func main() {
	fmt.Println("=== telegram auth tool ===")
	fmt.Println("this tool logs the automation account in and stores its session in the bot database")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}

	reader := bufio.NewReader(os.Stdin)
	cfg.TGApiID, cfg.TGApiHash = getAPICredentials(reader, cfg)

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fail("open database", err)
	}
	defer db.Close()
	fmt.Printf("database: %s\n\n", cfg.DatabaseURL)

	accounts, tdataPath := findTData(reader)

	switch chooseMethod(reader, len(accounts) > 0) {
	case methodTData:
		err = authWithTData(db, accounts, tdataPath, reader)
	case methodPhone:
		err = authWithPhone(cfg, db, reader)
	case methodQR:
		err = authWithQR(ctx, cfg, db)
	}
	if err != nil {
		fail("authentication", err)
	}

	// load the stored session the same way the bot will
	manager := telegram.NewManager(cfg, db.GORM)
	if err := manager.Init(ctx); err != nil {
		fail("restore session", err)
	}
	defer manager.Stop()

	client := manager.GetClient()
	if manager.GetStatus() != telegram.StatusReady || client == nil {
		fail("restore session", fmt.Errorf("client is %s", manager.GetStatus()))
	}

	sessionString, err := client.ExportStringSession()
	if err != nil {
		fail("export session", err)
	}

	fmt.Println("\n✓ authentication successful!")
	fmt.Printf("logged in as: @%s\n", client.Self.Username)
	fmt.Println("the session is stored in the bot database, the bot will pick it up on start")
	fmt.Println("\nto run elsewhere, use this session string:")
	fmt.Println("---")
	fmt.Println(sessionString)
	fmt.Println("---")
	fmt.Println("\nadd it to your .env file as TG_SESSION_STRING")
	fmt.Println("\n⚠️  keep this secret! it provides full access to your telegram account")
}

func fail(what string, err error) {
	fmt.Printf("error: %s: %v\n", what, err)
	os.Exit(1)
}

// findTData looks for Telegram Desktop accounts at the default location and
// offers to enter another path.
func findTData(reader *bufio.Reader) ([]tdesktop.Account, string) {
	tdataPath := getTelegramDesktopPath()
	accounts, err := tdesktop.Read(tdataPath, nil)
	if err == nil && len(accounts) > 0 {
		return accounts, tdataPath
	}

	fmt.Printf("telegram desktop data not found at: %s\n", tdataPath)
	fmt.Print("enter telegram desktop path (or press enter to skip): ")
	customPath, _ := reader.ReadString('\n')
	customPath = strings.TrimSpace(customPath)
	if customPath == "" {
		return nil, ""
	}
	if !strings.HasSuffix(customPath, "tdata") {
		customPath = filepath.Join(customPath, "tdata")
	}
	accounts, err = tdesktop.Read(customPath, nil)
	if err != nil || len(accounts) == 0 {
		return nil, ""
	}
	return accounts, customPath
}

func chooseMethod(reader *bufio.Reader, haveTData bool) int {
	fmt.Println("\nchoose authentication method:")
	if haveTData {
		fmt.Println("  1. use telegram desktop session (recommended)")
	}
	fmt.Println("  2. authenticate with phone number (sms/code)")
	fmt.Println("  3. scan a QR code with the telegram app")

	def := methodQR
	if haveTData {
		def = methodTData
	}
	fmt.Printf("\nenter choice [%d]: ", def)

	choice, _ := reader.ReadString('\n')
	n, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || n < methodTData || n > methodQR || (n == methodTData && !haveTData) {
		return def
	}
	return n
}

// getTelegramDesktopPath returns the path to Telegram Desktop data directory
func getTelegramDesktopPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Telegram Desktop", "tdata")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Telegram Desktop", "tdata")
	default: // linux
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "TelegramDesktop", "tdata")
	}
}

// getAPICredentials takes TG_API_ID and TG_API_HASH from the config or
// prompts for them.
func getAPICredentials(reader *bufio.Reader, cfg *config.Config) (int, string) {
	apiID, apiHash := cfg.TGApiID, cfg.TGApiHash

	if apiID == 0 {
		fmt.Print("enter your api_id (from https://my.telegram.org): ")
		s, _ := reader.ReadString('\n')
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			fail("invalid api_id", err)
		}
		apiID = n
	}
	if apiHash == "" {
		fmt.Print("enter your api_hash: ")
		apiHash, _ = reader.ReadString('\n')
		apiHash = strings.TrimSpace(apiHash)
	}
	return apiID, apiHash
}

// authWithTData converts a Telegram Desktop account into a session without
// talking to the servers.
func authWithTData(db *database.DB, accounts []tdesktop.Account, path string, reader *bufio.Reader) error {
	fmt.Printf("\nfound %d telegram desktop account(s) at %s\n", len(accounts), path)

	idx := 0
	if len(accounts) > 1 {
		for i, acc := range accounts {
			fmt.Printf("  %d. account with user id %d\n", i+1, acc.Authorization.UserID)
		}
		fmt.Print("\nselect account number [1]: ")
		choice, _ := reader.ReadString('\n')
		if n, err := strconv.Atoi(strings.TrimSpace(choice)); err == nil && n >= 1 && n <= len(accounts) {
			idx = n - 1
		}
	}

	data, err := session.TDesktopSession(accounts[idx])
	if err != nil {
		return fmt.Errorf("convert tdata: %w", err)
	}
	return telegram.SaveSession(db.GORM, data)
}

// authWithPhone runs gotgproto's interactive code login straight into the
// bot database.
func authWithPhone(cfg *config.Config, db *database.DB, reader *bufio.Reader) error {
	fmt.Print("enter your phone number (with country code, e.g. +1234567890): ")
	phone, _ := reader.ReadString('\n')
	phone = strings.TrimSpace(phone)

	fmt.Println("\nauthenticating... (check telegram for code)")

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(phone),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.SqlSession(db.GORM.Dialector),
			DisableCopyright: true,
		},
	)
	if err != nil {
		return err
	}
	client.Stop()
	return nil
}

// authWithQR prints login tokens as terminal QR codes until one is scanned.
func authWithQR(ctx context.Context, cfg *config.Config, db *database.DB) error {
	manager := telegram.NewManager(cfg, db.GORM)
	defer manager.Stop()

	fmt.Println("\nopen telegram on your phone: settings → devices → link desktop device")
	return manager.StartQR(ctx, func(url string) {
		fmt.Println()
		qrterminal.GenerateHalfBlock(url, qrterminal.L, os.Stdout)
		fmt.Println("waiting for scan, a new code appears when this one expires...")
	})
}
