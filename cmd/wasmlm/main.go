// wasmlm drives a glue-protocol engine module from the command line.
//
//	wasmlm run -engine llm.wasm [-model model.gguf] [-prompt text]
//	wasmlm inspect message.bin
//	wasmlm actions
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/wasmlm/bindings-go/internal/glue"
	"github.com/wasmlm/bindings-go/pkg/engine"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:])
	case "inspect":
		err = inspectCmd(os.Args[2:])
	case "actions":
		err = actionsCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "wasmlm: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: wasmlm <command> [flags]

commands:
  run      bring an engine up, probe its status, run a tokenize round trip
  inspect  decode a glue-encoded message file
  actions  list engine actions and their message prototypes`)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "wasmlm").Logger()
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	enginePath := fs.String("engine", "", "engine .wasm path (overrides config)")
	modelPath := fs.String("model", "", "model file to load before tokenizing")
	prompt := fs.String("prompt", "Hello from wasmlm", "text to tokenize")
	level := fs.String("level", "", "log level (overrides config)")
	fs.Parse(args)

	cfg := engine.DefaultConfig()
	if *configPath != "" {
		loaded, err := engine.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *enginePath != "" {
		cfg.EnginePath = *enginePath
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if cfg.EnginePath == "" {
		return fmt.Errorf("run: no engine module (set -engine or engine_path in config)")
	}

	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	client, err := engine.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	status, err := client.Status(ctx, glue.NewStatusRequest())
	if err != nil {
		return err
	}
	logger.Info().
		Bool("success", status.Success.Get()).
		Int("context_tokens", len(status.Tokens.Get())).
		Msg("engine up")

	if *modelPath != "" {
		req := glue.NewLoadRequest()
		req.ModelPaths.Set([]string{*modelPath})
		req.NCtxAuto.Set(true)
		req.UseMmap.Set(true)
		res, err := client.Load(ctx, req)
		if err != nil {
			return err
		}
		logger.Info().
			Int32("n_ctx", res.NCtx.Get()).
			Int32("n_vocab", res.NVocab.Get()).
			Int32("n_embd", res.NEmbd.Get()).
			Msg("model loaded")
	}

	tokReq := glue.NewTokenizeRequest()
	tokReq.Text.Set(*prompt)
	tokReq.Special.Set(false)
	tokRes, err := client.Tokenize(ctx, tokReq)
	if err != nil {
		return err
	}
	tokens := tokRes.Tokens.Get()
	logger.Info().Int("count", len(tokens)).Msg("tokenized prompt")
	fmt.Println(tokens)

	dtkReq := glue.NewDetokenizeRequest()
	dtkReq.Tokens.Set(tokens)
	dtkRes, err := client.Detokenize(ctx, dtkReq)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", dtkRes.Buffer.Get())
	return nil
}

func inspectCmd(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	hex := fs.Bool("hex", false, "also print a hex dump")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("inspect: no message files given")
	}

	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}
		if fs.NArg() > 1 {
			fmt.Printf("== %s\n", path)
		}

		msg, err := glue.DecodeAny(data)
		if err != nil {
			fmt.Printf("undecodable (%v)\n%s", err, glue.HexDump(data))
			continue
		}
		fmt.Print(glue.FormatMessage(msg))
		if *hex {
			fmt.Print(glue.HexDump(data))
		}
	}
	return nil
}

// Engine dispatch table, one row per action with its request and response
// prototypes.
var actionTable = []struct {
	name string
	req  string
	res  string
}{
	{engine.ActionLoad, glue.ProtoLoadReq, glue.ProtoLoadRes},
	{engine.ActionSetOptions, glue.ProtoSetOptionsReq, glue.ProtoSetOptionsRes},
	{engine.ActionSamplingInit, glue.ProtoSamplingInitReq, glue.ProtoSamplingInitRes},
	{engine.ActionSamplingSample, glue.ProtoSamplingSampleReq, glue.ProtoSamplingSampleRes},
	{engine.ActionSamplingAccept, glue.ProtoSamplingAcceptReq, glue.ProtoSamplingAcceptRes},
	{engine.ActionGetVocab, glue.ProtoGetVocabReq, glue.ProtoGetVocabRes},
	{engine.ActionLookupToken, glue.ProtoLookupTokenReq, glue.ProtoLookupTokenRes},
	{engine.ActionTokenize, glue.ProtoTokenizeReq, glue.ProtoTokenizeRes},
	{engine.ActionDetokenize, glue.ProtoDetokenizeReq, glue.ProtoDetokenizeRes},
	{engine.ActionDecode, glue.ProtoDecodeReq, glue.ProtoDecodeRes},
	{engine.ActionEncode, glue.ProtoEncodeReq, glue.ProtoEncodeRes},
	{engine.ActionGetLogits, glue.ProtoGetLogitsReq, glue.ProtoGetLogitsRes},
	{engine.ActionEmbeddings, glue.ProtoEmbeddingsReq, glue.ProtoEmbeddingsRes},
	{engine.ActionChatFormat, glue.ProtoChatFormatReq, glue.ProtoChatFormatRes},
	{engine.ActionKvRemove, glue.ProtoKvRemoveReq, glue.ProtoKvRemoveRes},
	{engine.ActionKvClear, glue.ProtoKvClearReq, glue.ProtoKvClearRes},
	{engine.ActionSessionSave, glue.ProtoSessionSaveReq, glue.ProtoSessionSaveRes},
	{engine.ActionSessionLoad, glue.ProtoSessionLoadReq, glue.ProtoSessionLoadRes},
	{engine.ActionStatus, glue.ProtoStatusReq, glue.ProtoStatusRes},
	{engine.ActionBenchmark, glue.ProtoBenchmarkReq, glue.ProtoBenchmarkRes},
	{engine.ActionPerplexity, glue.ProtoPerplexityReq, glue.ProtoPerplexityRes},
}

func actionsCmd(args []string) error {
	fs := flag.NewFlagSet("actions", flag.ExitOnError)
	fs.Parse(args)

	fmt.Printf("%-16s %-9s %s\n", "action", "request", "response")
	for _, row := range actionTable {
		fmt.Printf("%-16s %-9s %s\n", row.name, row.req, row.res)
	}
	fmt.Printf("\nfailures answer with %s in place of the response\n", glue.ProtoErrorEvent)
	return nil
}
