package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Node struct {
	DBPath  string // Pebble database directory
	APIAddr string // HTTP/WebSocket listen address
	LogFile string // structured log output file

	// EscrowAddr is the identity the engine holds escrow under on every
	// asset ledger. Stable across restarts so escrowed balances survive.
	EscrowAddr string
}

// Token bootstraps an in-process asset ledger at startup. Deployments that
// bridge real asset ledgers register them instead.
type Token struct {
	Address string
	Name    string
	Symbol  string
}

type API struct {
	CORSOrigins []string
}

type Config struct {
	Node   Node
	API    API
	Tokens []Token
}

func Default() Config {
	return Config{
		Node: Node{
			DBPath:     "data/book.db",
			APIAddr:    ":8080",
			LogFile:    "data/book.log",
			EscrowAddr: "0x00000000000000000000000000000000000e5c60",
		},
		API: API{
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Tokens: []Token{
			{Address: "0x000000000000000000000000000000000000000a", Name: "TokenA", Symbol: "TKA"},
			{Address: "0x000000000000000000000000000000000000000b", Name: "TokenB", Symbol: "TKB"},
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("ESCROW_ADDR"); v != "" {
		cfg.Node.EscrowAddr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.API.CORSOrigins = strings.Split(v, ",")
	}

	return cfg
}
