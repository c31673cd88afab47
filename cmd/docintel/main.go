package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/reno4705/docintel/internal/util"
	"github.com/reno4705/docintel/pkg/ai"
	oai "github.com/reno4705/docintel/pkg/ai/ollama"
	gai "github.com/reno4705/docintel/pkg/ai/openai"
	"github.com/reno4705/docintel/pkg/engine"
	"github.com/reno4705/docintel/pkg/logger"
	"github.com/reno4705/docintel/pkg/logger/console"
	pgxstore "github.com/reno4705/docintel/pkg/store/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleBackend := console.NewConsoleBackend(console.ConsoleBackendParams{
		Debug: debug,
	})
	logger.Init(consoleBackend)

	if len(os.Args) < 2 {
		logger.Fatal("Usage: docintel <directory of .txt documents>")
	}
	dir := os.Args[1]

	// Analyzer over the configured adapter, with key fallback
	pool := buildCredentialPool()
	analyzer := ai.NewAnalyzer(ai.NewAnalyzerParams{
		Completer:   pool,
		Model:       util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini"),
		TokenBudget: util.GetEnvInt("AI_TOKEN_BUDGET", 24000),
	})

	params := engine.NewEngineParams{
		Analyzer:         analyzer,
		ParallelRequests: util.GetEnvInt("AI_PARALLEL_REQ", 2),
		TrailDocLimit:    util.GetEnvInt("TRAIL_DOC_LIMIT", 0),
		MatchThreshold:   util.GetEnvFloat("MATCH_THRESHOLD", 0),
	}

	// Optional persistence
	if dsn := util.GetEnvString("DATABASE_URL", ""); dsn != "" {
		storage, err := pgxstore.NewStorage(ctx, dsn)
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}
		params.Storage = storage
	}

	e := engine.NewEngine(params)
	defer e.Close()

	if err := e.Restore(ctx); err != nil {
		logger.Fatal("Could not restore persisted graph", "err", err)
	}

	inputs, err := readDocuments(dir)
	if err != nil {
		logger.Fatal("Could not read documents", "dir", dir, "err", err)
	}
	if len(inputs) == 0 {
		logger.Fatal("No .txt documents found", "dir", dir)
	}

	logger.Info("Ingesting documents", "count", len(inputs))
	started := time.Now()
	docs, err := e.IngestDocuments(ctx, inputs)
	if err != nil {
		logger.Fatal("Ingestion aborted", "err", err)
	}
	logger.Info("Ingestion finished", "documents", len(docs), "took", time.Since(started).Round(time.Millisecond))

	overview := e.Overview()
	logger.Info("Corpus overview",
		"documents", overview.Documents.DocumentCount,
		"entities", overview.Entities,
		"relationships", overview.Relationships,
	)

	if contradictions := e.FindContradictions(); len(contradictions) > 0 {
		for _, c := range contradictions {
			logger.Warn("Contradiction detected",
				"entity", c.Entity,
				"documents", strings.Join(c.Documents, ", "),
				"keywords", c.Keywords[0]+" / "+c.Keywords[1],
			)
		}
	}

	trail, err := e.BuildTrail(ctx, nil, 0)
	if err != nil {
		logger.Fatal("Trail build failed", "err", err)
	}
	if trail.Partial {
		logger.Warn("Trail synthesis unavailable, printing aggregation only")
	}

	out, err := json.MarshalIndent(trail, "", "  ")
	if err != nil {
		logger.Fatal("Could not encode trail", "err", err)
	}
	os.Stdout.Write(append(out, '\n'))
}

func buildCredentialPool() *ai.CredentialPool {
	adapter := util.GetEnvString("AI_ADAPTER", "openai")
	model := util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini")
	baseURL := util.GetEnv("AI_CHAT_URL")

	keys := []struct{ name, key string }{
		{"primary", util.GetEnv("AI_CHAT_KEY")},
		{"secondary", util.GetEnvString("AI_CHAT_KEY_SECONDARY", "")},
	}

	var credentials []ai.Credential
	for _, k := range keys {
		if k.key == "" {
			continue
		}
		switch adapter {
		case "ollama":
			client, err := oai.NewClient(oai.NewClientParams{
				BaseURL: baseURL,
				APIKey:  k.key,
				Model:   model,
			})
			if err != nil {
				logger.Fatal("Could not create Ollama client", "err", err)
			}
			credentials = append(credentials, ai.Credential{Name: k.name, Completer: client})
		default:
			client := gai.NewClient(gai.NewClientParams{
				BaseURL: baseURL,
				APIKey:  k.key,
				Model:   model,
			})
			credentials = append(credentials, ai.Credential{Name: k.name, Completer: client})
		}
	}
	if len(credentials) == 0 {
		logger.Fatal("No AI credentials configured, set AI_CHAT_KEY")
	}

	return ai.NewCredentialPool(ai.NewCredentialPoolParams{
		Credentials: credentials,
		Cooldown:    time.Duration(util.GetEnvInt("AI_COOLDOWN_SECONDS", 60)) * time.Second,
	})
}

func readDocuments(dir string) ([]engine.DocumentInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var inputs []engine.DocumentInput
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		text, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, engine.DocumentInput{Name: entry.Name(), Text: string(text)})
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Name < inputs[j].Name })
	return inputs, nil
}
