package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/tcpsub"
	"github.com/Zereker/tcpsub/internal/config"
)

var (
	configFlag   string
	hostFlag     string
	portFlag     uint16
	codecFlag    string
	logLevelFlag string

	cfg    *config.Config
	logger zlogger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Configuration is resolved before any
// subcommand runs: file, then TCPSUB_* environment, then flags.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tcpsub",
		Short:         "Publish and subscribe to length-prefixed frames over TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configFlag)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = hostFlag
			}
			if flags.Changed("port") {
				cfg.Port = portFlag
			}
			if flags.Changed("codec") {
				cfg.Codec = codecFlag
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevelFlag
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger = newLogger(cfg.LogLevel)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Host to dial or bind")
	rootCmd.PersistentFlags().Uint16VarP(&portFlag, "port", "p", 0, "Port to dial or bind")
	rootCmd.PersistentFlags().StringVar(&codecFlag, "codec", "", "Payload codec: json, cbor, yaml or toml")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		subscribeCmd(),
		publishCmd(),
	)
	return rootCmd
}

// ---------------------------------------------------------------------------
// subscribeCmd
// ---------------------------------------------------------------------------

func subscribeCmd() *cobra.Command {
	var (
		exact  uint16
		decode bool
	)

	cmd := &cobra.Command{
		Use:     "subscribe",
		Aliases: []string{"sub"},
		Short:   "Connect to a publisher and print every frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			if exact > 0 && decode {
				return errors.New("--exact and --decode cannot be used together")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r, err := tcpsub.DialContext(ctx, cfg.Host, cfg.Port,
				tcpsub.DialTimeoutOption(cfg.DialTimeout),
				tcpsub.CustomCodecOption(cfg.CodecImpl()),
				tcpsub.LoggerOption(logger),
			)
			if err != nil {
				return err
			}
			defer r.Close()

			logger.Info("subscribed", "addr", r.RemoteAddr().String(), "codec", cfg.Codec)

			for {
				if err := readOne(ctx, cmd.OutOrStdout(), r, cfg.Codec, exact, decode); err != nil {
					if ctx.Err() != nil || errors.Is(err, tcpsub.ErrStreamClosed) {
						logger.Info("subscription ended", "reason", err.Error())
						return nil
					}
					return err
				}
			}
		},
	}
	cmd.Flags().Uint16Var(&exact, "exact", 0, "Read fixed-size blocks of this many bytes instead of length-prefixed frames")
	cmd.Flags().BoolVar(&decode, "decode", false, "Decode each frame with the configured codec")
	return cmd
}

// readOne reads a single frame, or a fixed-size block when exact is set, and
// prints it to w. With decode the frame is printed as JSON.
func readOne(ctx context.Context, w io.Writer, r *tcpsub.Reader, codec string, exact uint16, decode bool) error {
	switch {
	case decode:
		var v any
		var err error
		if codec == "toml" {
			// toml documents are always tables
			v, err = tcpsub.ReadDecodedContext[map[string]any](ctx, r)
		} else {
			v, err = tcpsub.ReadDecodedContext[any](ctx, r)
		}
		if err != nil {
			if errors.Is(err, tcpsub.ErrDecode) {
				logger.Warn("skipping undecodable frame", "error", err.Error())
				return nil
			}
			return err
		}
		out, err := json.Marshal(v)
		if err != nil {
			out = []byte(fmt.Sprintf("%v", v))
		}
		fmt.Fprintln(w, string(out))
	case exact > 0:
		data, err := r.ReadExactContext(ctx, exact)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%q\n", data)
	default:
		data, err := r.ReadFrameContext(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%q\n", data)
	}
	return nil
}

// ---------------------------------------------------------------------------
// publishCmd
// ---------------------------------------------------------------------------

func publishCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:     "publish",
		Aliases: []string{"pub"},
		Short:   "Listen for subscribers and publish each stdin line as a frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)))
			if err != nil {
				return err
			}

			pub, err := tcpsub.Listen(addr,
				tcpsub.PublisherCodecOption(cfg.CodecImpl()),
				tcpsub.PublisherLoggerOption(logger),
				tcpsub.BufferSizeOption(cfg.QueueSize),
				tcpsub.OnSubscribeOption(func(id string, addr net.Addr) {
					logger.Info("subscriber joined", "subscriber", id, "addr", addr.String())
				}),
			)
			if err != nil {
				return err
			}

			done := make(chan error, 1)
			go func() {
				done <- pub.Serve(ctx)
			}()

			publish := pub.Publish
			if raw {
				publish = pub.PublishRaw
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			for {
				select {
				case <-ctx.Done():
					pub.Close()
					return ignoreCanceled(<-done)
				case err := <-done:
					return ignoreCanceled(err)
				case line, ok := <-lines:
					if !ok {
						pub.Close()
						return ignoreCanceled(<-done)
					}
					if err := publish([]byte(line)); err != nil {
						logger.Warn("publish failed", "error", err.Error())
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Publish lines without a length header")
	return cmd
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
