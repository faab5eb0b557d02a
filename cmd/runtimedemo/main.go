// Command runtimedemo wires the runtime library together end to end: load a
// component, instantiate it, and either exec an export directly or serve it
// over a libp2p transport for incoming RPC. It is a thin wiring exercise,
// not a feature CLI — every decision it makes (which links, which budget)
// is hardcoded for demonstration rather than configurable in full generality.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"isocore/registry"
	"isocore/runtimeconfig"
	"isocore/schema"
	"isocore/transport"
	"isocore/value"
)

func main() {
	rootCmd := &cobra.Command{Use: "runtimedemo"}
	rootCmd.AddCommand(echoCmd())
	rootCmd.AddCommand(diamondCmd())
	rootCmd.AddCommand(serveCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// echoCmd instantiates a single component exporting math.add and calls it
// directly through runtime.exec, matching spec.md §8's single-value echo
// scenario.
func echoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echo [component.wasm]",
		Short: "instantiate a component and call its math.add export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := runtimeconfig.Defaults()
			logrus.SetLevel(logLevel(cfg.Logging.Level))

			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("runtimedemo: read component: %w", err)
			}

			r := registry.New()
			exports := schema.Schema{
				"math": schema.Interface{
					"add": {
						Params:  []*schema.Type{schema.U32(), schema.U32()},
						Results: []*schema.Type{schema.U32()},
					},
				},
			}
			componentID, err := r.RegisterComponent(code, schema.Schema{}, exports)
			if err != nil {
				return fmt.Errorf("runtimedemo: register component: %w", err)
			}

			b, instanceID, err := r.NewBuilder(componentID)
			if err != nil {
				return fmt.Errorf("runtimedemo: new builder: %w", err)
			}
			if _, err := r.Instantiate(componentID, instanceID, b.RegisterAs("math")); err != nil {
				return fmt.Errorf("runtimedemo: instantiate: %w", err)
			}

			results, err := r.Exec(instanceID, "math", "add", []*value.Value{value.Uint(3), value.Uint(4)})
			if err != nil {
				return fmt.Errorf("runtimedemo: exec math.add: %w", err)
			}
			fmt.Printf("math.add(3, 4) = %d\n", results[0].U)
			return nil
		},
	}
	return cmd
}

// diamondCmd instantiates two components where one links the other locally,
// matching spec.md §8's local diamond scenario: a top component calls
// through a local link to a leaf component's export.
func diamondCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diamond [leaf.wasm] [top.wasm]",
		Short: "instantiate a leaf component and a top component linking it locally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := runtimeconfig.Defaults()
			logrus.SetLevel(logLevel(cfg.Logging.Level))

			leafCode, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("runtimedemo: read leaf component: %w", err)
			}
			topCode, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("runtimedemo: read top component: %w", err)
			}

			r := registry.New()
			leafExports := schema.Schema{
				"math": schema.Interface{
					"add": {
						Params:  []*schema.Type{schema.U32(), schema.U32()},
						Results: []*schema.Type{schema.U32()},
					},
				},
			}
			leafID, err := r.RegisterComponent(leafCode, schema.Schema{}, leafExports)
			if err != nil {
				return fmt.Errorf("runtimedemo: register leaf: %w", err)
			}
			leafBuilder, leafInstanceID, err := r.NewBuilder(leafID)
			if err != nil {
				return fmt.Errorf("runtimedemo: new leaf builder: %w", err)
			}
			if _, err := r.Instantiate(leafID, leafInstanceID, leafBuilder); err != nil {
				return fmt.Errorf("runtimedemo: instantiate leaf: %w", err)
			}

			topImports := leafExports // the top component imports exactly what the leaf exports
			topID, err := r.RegisterComponent(topCode, topImports, schema.Schema{})
			if err != nil {
				return fmt.Errorf("runtimedemo: register top: %w", err)
			}
			topBuilder, topInstanceID, err := r.NewBuilder(topID)
			if err != nil {
				return fmt.Errorf("runtimedemo: new top builder: %w", err)
			}
			topBuilder = topBuilder.LinkLocal("math", leafInstanceID)
			if _, err := r.Instantiate(topID, topInstanceID, topBuilder); err != nil {
				return fmt.Errorf("runtimedemo: instantiate top: %w", err)
			}

			fmt.Printf("diamond wired: top=%s -> leaf=%s\n", topInstanceID, leafInstanceID)
			return nil
		},
	}
	return cmd
}

// serveOnP2P installs a stream handler on host so every inbound libp2p
// stream is answered through r.HandleIncoming, for cross-peer round-trip
// demonstrations (spec.md §8's cross-peer round-trip scenario).
func serveOnP2P(r *registry.Registry, host transport.StreamHost) {
	transport.ListenP2PStream(host, func(peerID peer.ID, s *transport.P2PStream) {
		go func() {
			defer s.Close()
			for {
				msg, err := s.Recv(context.Background())
				if err != nil {
					logrus.Debugf("runtimedemo: stream from %s closed: %v", peerID, err)
					return
				}
				reply := r.HandleIncoming(msg)
				if reply == nil {
					continue
				}
				if err := s.Send(context.Background(), reply); err != nil {
					logrus.Warnf("runtimedemo: reply to %s failed: %v", peerID, err)
					return
				}
			}
		}()
	})
}

// serveCmd hosts one component over a real libp2p connection, registered as
// remote-id "math", and blocks answering inbound RPC calls until
// interrupted — the receiving side of spec.md §8's cross-peer round-trip
// scenario.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [component.wasm]",
		Short: "host a component's exports over libp2p for incoming RPC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := runtimeconfig.Defaults()
			logrus.SetLevel(logLevel(cfg.Logging.Level))

			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("runtimedemo: read component: %w", err)
			}

			host, err := libp2p.New(libp2p.ListenAddrStrings(cfg.Transport.ListenAddr))
			if err != nil {
				return fmt.Errorf("runtimedemo: start libp2p host: %w", err)
			}
			defer host.Close()

			r := registry.New()
			exports := schema.Schema{
				"math": schema.Interface{
					"add": {
						Params:  []*schema.Type{schema.U32(), schema.U32()},
						Results: []*schema.Type{schema.U32()},
					},
				},
			}
			componentID, err := r.RegisterComponent(code, schema.Schema{}, exports)
			if err != nil {
				return fmt.Errorf("runtimedemo: register component: %w", err)
			}
			b, instanceID, err := r.NewBuilder(componentID)
			if err != nil {
				return fmt.Errorf("runtimedemo: new builder: %w", err)
			}
			if _, err := r.Instantiate(componentID, instanceID, b.RegisterAs("math")); err != nil {
				return fmt.Errorf("runtimedemo: instantiate: %w", err)
			}

			serveOnP2P(r, host)
			for _, addr := range host.Addrs() {
				fmt.Printf("listening on %s/p2p/%s\n", addr, host.ID())
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	return cmd
}

func logLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
