// socialid-admin: utilidades operativas (claves, migraciones).
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/socialid/internal/reward/voucher"
	pgdriver "github.com/dropDatabas3/socialid/internal/store/pg"
	pgmigrations "github.com/dropDatabas3/socialid/migrations/postgres"
)

var envFile string

func main() {
	root := &cobra.Command{
		Use:          "socialid-admin",
		Short:        "Herramientas operativas del servicio de identidad",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "ruta a .env (si existe, se carga)")

	root.AddCommand(keygenCmd(), migrateCmd(), signerAddressCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// ───────── keygen ─────────

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen [session|voucher|secretbox]",
		Short: "Genera claves para el servicio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(args[0]) {
			case "session":
				seed := make([]byte, ed25519.SeedSize)
				if _, err := rand.Read(seed); err != nil {
					return err
				}
				fmt.Printf("SESSION_SIGNING_KEY=%s\n", base64.StdEncoding.EncodeToString(seed))
			case "voucher":
				key, err := ethcrypto.GenerateKey()
				if err != nil {
					return err
				}
				fmt.Printf("VOUCHER_SIGNER_KEY=%s\n", hex.EncodeToString(ethcrypto.FromECDSA(key)))
				fmt.Printf("# signer address: %s\n", ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
			case "secretbox":
				k := make([]byte, 32)
				if _, err := rand.Read(k); err != nil {
					return err
				}
				fmt.Printf("SECRETBOX_MASTER_KEY=%s\n", base64.StdEncoding.EncodeToString(k))
			default:
				return fmt.Errorf("unknown key kind %q (session|voucher|secretbox)", args[0])
			}
			return nil
		},
	}
	return cmd
}

// ───────── migrate ─────────

func migrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Aplica las migraciones embebidas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = strings.ToLower(args[0])
			}

			if dsn == "" {
				dsn = os.Getenv("STORAGE_DSN")
			}
			if dsn == "" {
				dsn = os.Getenv("DATABASE_URL")
			}
			if dsn == "" {
				return fmt.Errorf("missing DSN: use --dsn or STORAGE_DSN")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			store, err := pgdriver.New(ctx, dsn, pgdriver.Config{MaxConns: 2})
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("db unreachable: %w", err)
			}

			switch action {
			case "up":
				if err := store.RunMigrations(ctx, pgmigrations.FS, pgmigrations.Dir); err != nil {
					return err
				}
				fmt.Println("migrations applied")
			case "down":
				if err := store.RunMigrationsDown(ctx, pgmigrations.FS, pgmigrations.Dir); err != nil {
					return err
				}
				fmt.Println("migrations rolled back")
			default:
				return fmt.Errorf("unknown action %q (up|down)", action)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "DSN de Postgres (default: $STORAGE_DSN)")
	return cmd
}

// ───────── signer-address ─────────

func signerAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signer-address",
		Short: "Imprime la address del firmante de vouchers (desde VOUCHER_SIGNER_KEY)",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := os.Getenv("VOUCHER_SIGNER_KEY")
			if key == "" {
				return fmt.Errorf("VOUCHER_SIGNER_KEY not set")
			}
			s, err := voucher.New(key, "0x0000000000000000000000000000000000000000", 1, time.Hour)
			if err != nil {
				return err
			}
			fmt.Println(s.Address())
			return nil
		},
	}
}
