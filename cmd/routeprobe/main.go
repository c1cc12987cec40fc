package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/agoravox/agoravox/internal/command"
	"github.com/agoravox/agoravox/internal/faq"
	"github.com/agoravox/agoravox/internal/noise"
	"github.com/agoravox/agoravox/internal/policy"
)

// routeprobe replays transcripts through the interception pipeline offline:
// noise filter, local command table, FAQ cache, remote fallthrough. Useful to
// tune the rule tables without a live voice session.

type options struct {
	role    string
	cache   bool
	texts   []string
	verbose bool
}

var defaultUtterances = []string{
	"euh",
	"Sous-titrage Société Radio-Canada",
	"Passe en mode sombre",
	"Ouvre la page des députés",
	"Quels sont les horaires d'ouverture ?",
	"Arrête la conversation",
	"Explique le rôle du bureau de l'Assemblée",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "routeprobe: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "routeprobe: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var stdin bool

	flag.StringVar(&cfg.role, "role", "citizen", "audience role (citizen|deputy|admin)")
	flag.BoolVar(&cfg.cache, "cache", true, "enable the FAQ cache tier")
	flag.StringVar(&textsRaw, "texts", "", "transcripts separated by '|' (optional)")
	flag.BoolVar(&stdin, "stdin", false, "read one transcript per line from stdin")
	flag.BoolVar(&cfg.verbose, "verbose", false, "print matched tool calls and answers in full")
	flag.Parse()

	switch strings.ToLower(strings.TrimSpace(cfg.role)) {
	case "citizen", "deputy", "admin":
	default:
		return options{}, fmt.Errorf("invalid role %q", cfg.role)
	}

	if stdin {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				cfg.texts = append(cfg.texts, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return options{}, fmt.Errorf("read stdin: %w", err)
		}
	} else if strings.TrimSpace(textsRaw) != "" {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
	}
	if len(cfg.texts) == 0 {
		cfg.texts = append([]string(nil), defaultUtterances...)
	}
	return cfg, nil
}

func run(cfg options) error {
	filter := noise.NewFilter(noise.French)
	commands := command.NewRouter()
	faqs := faq.NewRouter()
	meter := faq.NewUsageMeter(len(cfg.texts))
	role := policy.ParseRole(cfg.role)

	for i, text := range cfg.texts {
		label := fmt.Sprintf("%2d/%d %q", i+1, len(cfg.texts), text)

		if filter.IsNoise(text) {
			fmt.Printf("%s -> noise (dropped)\n", label)
			continue
		}

		if match, ok := commands.Match(text); ok {
			meter.Record(faq.Decision{Tier: faq.TierLocal})
			fmt.Printf("%s -> local tool=%s\n", label, match.ToolCall.Name)
			if cfg.verbose {
				fmt.Printf("      args=%v ack=%q\n", match.ToolCall.Arguments, match.Response)
			}
			continue
		}

		decision := faqs.Route(text, role, cfg.cache)
		meter.Record(decision)
		switch decision.Tier {
		case faq.TierCached:
			fmt.Printf("%s -> cached\n", label)
			if cfg.verbose {
				fmt.Printf("      answer=%q\n", decision.Answer)
			}
		default:
			fmt.Printf("%s -> remote est_cost=%.2f¢\n", label, decision.EstimatedCostCents)
		}
	}

	stats := meter.Snapshot()
	fmt.Printf("\nrouteprobe: decisions=%v avoided_remote=%d est_spend=%.2f¢\n",
		stats.Decisions, stats.AvoidedRemote, stats.SpentCostCents)
	return nil
}
