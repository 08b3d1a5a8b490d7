package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/voca-labs/voca/agent/contract"
	llmx "github.com/voca-labs/voca/agent/llm"
	orchestratorx "github.com/voca-labs/voca/agent/orchestrator"
	promptx "github.com/voca-labs/voca/agent/prompt"
	summaryx "github.com/voca-labs/voca/agent/summary"
	toolx "github.com/voca-labs/voca/agent/tool"
	customerx "github.com/voca-labs/voca/customer"
	configx "github.com/voca-labs/voca/pkg/config"
	elevenlabsx "github.com/voca-labs/voca/pkg/elevenlabs"
	_ "github.com/voca-labs/voca/pkg/logger/autoload"
	openaiapix "github.com/voca-labs/voca/pkg/openaiapi"
	speechx "github.com/voca-labs/voca/speech"
)

type AppConfig struct {
	StoreBackend string `envconfig:"STORE_BACKEND" split_words:"true" default:"file"`
	CustomerID   string `envconfig:"CUSTOMER_ID" split_words:"true"`
	VoiceOutput  bool   `envconfig:"VOICE_OUTPUT" split_words:"true"`
	AudioDir     string `envconfig:"AUDIO_DIR" split_words:"true" default:"audio_out"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("VOCA")

	store, cleanup := buildStore(ctx, appCfg.StoreBackend)
	defer cleanup()

	customerID := strings.TrimSpace(appCfg.CustomerID)
	if customerID == "" {
		id, err := store.RandomID(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("pick customer to call")
		}
		customerID = id
	}

	openaiCfg := configx.MustNew[openaiapix.Config]("OPENAI")
	chatModel, err := openaiCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create chat model")
	}

	prompts := promptx.LoadPromptSet()

	generator, err := llmx.NewGenerator(ctx, chatModel, prompts.Agent, toolx.Infos())
	if err != nil {
		log.Fatal().Err(err).Msg("create generator")
	}
	summarizer, err := summaryx.NewSummarizer(ctx, chatModel, prompts.Summarizer)
	if err != nil {
		log.Fatal().Err(err).Msg("create summarizer")
	}

	transcriber, err := speechx.NewWhisperTranscriber(openaiapix.NewClient(*openaiCfg))
	if err != nil {
		log.Fatal().Err(err).Msg("create transcriber")
	}

	var synthesizer contractx.Synthesizer
	if appCfg.VoiceOutput {
		ttsCfg := configx.MustNew[elevenlabsx.Config]("ELEVENLABS")
		synthesizer, err = speechx.NewVoiceSynthesizer(elevenlabsx.MustNew(*ttsCfg))
		if err != nil {
			log.Fatal().Err(err).Msg("create synthesizer")
		}
		if err := os.MkdirAll(appCfg.AudioDir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", appCfg.AudioDir).Msg("create audio dir")
		}
	}

	orchCfg := configx.MustNew[orchestratorx.Config]("CALL")
	orch, err := orchestratorx.New(*orchCfg, orchestratorx.Deps{
		Store:      store,
		Generator:  generator,
		Summarizer: summarizer,
	}, customerID)
	if err != nil {
		log.Fatal().Err(err).Msg("create orchestrator")
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupts
		log.Info().Msg("call dropped, forcing close")
		if err := orch.Hangup(ctx); err != nil {
			log.Error().Err(err).Msg("forced close failed")
		}
		printSummary(orch)
		os.Exit(0)
	}()

	greeting, err := orch.Start(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("customer_id", customerID).Msg("start call")
	}
	speak(ctx, appCfg, synthesizer, greeting, 0)

	scanner := bufio.NewScanner(os.Stdin)
	turn := 0
	for {
		fmt.Print("customer> ")
		if !scanner.Scan() {
			if err := orch.Hangup(ctx); err != nil {
				log.Error().Err(err).Msg("forced close failed")
			}
			break
		}
		turn++

		utterance, ok := readUtterance(ctx, transcriber, scanner.Text())
		if !ok {
			line, err := orch.PromptRepeat()
			if err != nil {
				log.Error().Err(err).Msg("repeat prompt failed")
				break
			}
			speak(ctx, appCfg, synthesizer, line, turn)
			continue
		}

		reply, err := orch.HandleUtterance(ctx, utterance)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			break
		}
		speak(ctx, appCfg, synthesizer, reply, turn)

		if orch.Done() {
			break
		}
	}

	printSummary(orch)
}

func buildStore(ctx context.Context, backend string) (customerx.Store, func()) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "file", "":
		fileCfg := configx.MustNew[customerx.FileConfig]("CUSTOMER")
		store, err := customerx.NewFileStore(*fileCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("open file store")
		}
		return store, func() {}
	case "redis":
		redisCfg := configx.MustNew[customerx.RedisConfig]("REDIS")
		store := customerx.NewRedisStore(*redisCfg)
		if err := store.Bootstrap(ctx); err != nil {
			log.Fatal().Err(err).Msg("bootstrap redis store")
		}
		return store, func() { _ = store.Close() }
	case "postgres":
		pgCfg := configx.MustNew[customerx.PostgresConfig]("POSTGRES")
		store := customerx.NewBunStore(*pgCfg)
		if err := store.Bootstrap(ctx); err != nil {
			log.Fatal().Err(err).Msg("bootstrap postgres store")
		}
		return store, func() { _ = store.Close() }
	default:
		log.Fatal().Str("backend", backend).Msg("unknown store backend")
		return nil, nil
	}
}

// readUtterance resolves one line of input. A line starting with "@" names
// an audio file to transcribe; anything else is the utterance itself. A
// failed transcription reports not-ok so the caller prompts for a repeat.
func readUtterance(ctx context.Context, transcriber contractx.Transcriber, line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "@") {
		return line, true
	}

	path := strings.TrimSpace(strings.TrimPrefix(trimmed, "@"))
	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("open audio file failed")
		return "", false
	}
	defer f.Close()

	text, err := transcriber.Transcribe(ctx, f)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("transcription failed")
		return "", false
	}
	return text, true
}

// speak prints the agent line and, in voice mode, renders it to an mp3 file.
// Synthesis failure degrades to text only.
func speak(ctx context.Context, cfg *AppConfig, synthesizer contractx.Synthesizer, text string, turn int) {
	fmt.Printf("agent> %s\n", text)
	if synthesizer == nil || strings.TrimSpace(text) == "" {
		return
	}

	audio, err := synthesizer.Synthesize(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("voice output unavailable, continuing with text")
		return
	}

	name := filepath.Join(cfg.AudioDir, fmt.Sprintf("agent_%s_%03d.mp3", time.Now().UTC().Format("150405"), turn))
	if err := os.WriteFile(name, audio, 0o644); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("write audio file failed")
		return
	}
	fmt.Printf("audio> %s\n", name)
}

func printSummary(orch *orchestratorx.Orchestrator) {
	sess := orch.Session()
	if sess.Summary == nil {
		return
	}
	fmt.Println("--- call summary ---")
	fmt.Printf("Customer:  %s\n", sess.CustomerID)
	fmt.Printf("Sentiment: %s\n", sess.Summary.Sentiment)
	fmt.Printf("Outcome:   %s\n", sess.Summary.OutcomeText)
	fmt.Printf("Resolved:  %t\n", sess.Summary.ResolvedComplaint)
	fmt.Printf("Turns:     %d\n", len(sess.Transcript))
}
