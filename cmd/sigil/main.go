package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sigilpub/sigil/server"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli/v2"
)

var Version = "dev"

func main() {
	app := &cli.App{
		Name:  "sigil",
		Usage: "A decentralized publisher identity service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				EnvVars: []string{"SIGIL_ADDR"},
			},
			&cli.StringFlag{
				Name:    "db-name",
				Value:   "sigil.db",
				EnvVars: []string{"SIGIL_DB_NAME"},
			},
			&cli.StringFlag{
				Name:     "hostname",
				Required: true,
				EnvVars:  []string{"SIGIL_HOSTNAME"},
			},
			&cli.StringFlag{
				Name:     "handle-secret",
				Required: true,
				EnvVars:  []string{"SIGIL_HANDLE_SECRET"},
			},
		},
		Commands: []*cli.Command{
			run,
			keygen,
		},
		ErrWriter: os.Stdout,
		Version:   Version,
	}

	app.Run(os.Args)
}

var run = &cli.Command{
	Name:  "run",
	Usage: "Start the sigil service",
	Flags: []cli.Flag{},
	Action: func(cmd *cli.Context) error {
		s, err := server.New(&server.Args{
			Addr:         cmd.String("addr"),
			DbName:       cmd.String("db-name"),
			Hostname:     cmd.String("hostname"),
			HandleSecret: cmd.String("handle-secret"),
			Version:      Version,
		})
		if err != nil {
			fmt.Printf("error creating sigil: %v", err)
			return err
		}

		if err := s.Serve(cmd.Context); err != nil {
			fmt.Printf("error starting sigil: %v", err)
			return err
		}

		return nil
	},
}

var keygen = &cli.Command{
	Name:  "keygen",
	Usage: "Generate a new master mnemonic",
	Action: func(cmd *cli.Context) error {
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			return err
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return err
		}

		fmt.Println(mnemonic)
		fmt.Println("\nWrite this down. The mnemonic is the master secret; it is never stored anywhere else.")

		return nil
	},
}
