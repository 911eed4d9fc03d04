package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"visiond/internal/config"
	"visiond/pkg/types"
)

// adminClient talks to a running visiond admin API.
type adminClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func newAdminClient(addr, apiKey string) *adminClient {
	return &adminClient{base: adminBaseURL(addr), apiKey: apiKey, http: &http.Client{Timeout: 60 * time.Second}}
}

// adminBaseURL turns a listen address into a URL a local client can dial.
func adminBaseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	if host, port, ok := strings.Cut(addr, ":"); ok && (host == "0.0.0.0" || host == "") {
		addr = "127.0.0.1:" + port
	}
	return "http://" + addr
}

func (c *adminClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e types.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s (%d)", method, path, e.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return json.Unmarshal(body, out)
}

func (c *adminClient) Status(ctx context.Context) (types.StatusResponse, error) {
	var st types.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", &st)
	return st, err
}

func (c *adminClient) Evict(ctx context.Context, alias string, force bool) (types.EvictResponse, error) {
	var ev types.EvictResponse
	path := "/evict/" + url.PathEscape(alias) + "?force=" + strconv.FormatBool(force)
	err := c.do(ctx, http.MethodPost, path, &ev)
	return ev, err
}

// clientFor resolves the admin address and key the same way serve does.
func clientFor(opts *rootOptions, addr string) (*adminClient, error) {
	cfg, err := loadConfig(opts, nil)
	if err != nil {
		return nil, err
	}
	if addr == "" {
		addr = cfg.AdminAddr
		if addr == adminDisabled {
			addr = cfg.Addr
		}
	}
	if addr == "" {
		addr = config.DefaultAdminAddr
	}
	return newAdminClient(addr, cfg.APIKey), nil
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workers and memory use of a running visiond",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := clientFor(opts, addr)
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(out, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "admin-addr", "", "Admin API address (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status document")
	return cmd
}

func printStatus(w io.Writer, st types.StatusResponse) {
	fmt.Fprintf(w, "memory: used %d MB, releasing %d MB, free %d MB of %d MB (margin %d MB)\n",
		st.UsedMB, st.ReleasingMB, st.FreeMB, st.BudgetMB, st.MarginMB)
	if h := st.Host; h != nil {
		fmt.Fprintf(w, "host: used %.1f GB (%.1f%%), available %.1f GB of %.1f GB, models %.1f GB\n",
			h.UsedGB, h.UsedPercent, h.AvailableGB, h.TotalGB, h.ModelsLoadedGB)
	}
	if len(st.Workers) == 0 {
		fmt.Fprintln(w, "no workers running")
		return
	}
	fmt.Fprintf(w, "%-16s %-10s %-9s %7s %6s %8s %9s %8s\n", "ALIAS", "KIND", "STATE", "PID", "PORT", "MEM_MB", "INFLIGHT", "IDLE_S")
	for _, ws := range st.Workers {
		fmt.Fprintf(w, "%-16s %-10s %-9s %7d %6d %8d %9d %8d\n",
			ws.Alias, ws.Kind, ws.State, ws.PID, ws.Port, ws.ReservedMB, ws.Inflight, ws.IdleSeconds)
	}
}

func newEvictCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var force bool
	cmd := &cobra.Command{
		Use:     "evict <alias>",
		Short:   "Stop a worker and free its memory",
		Example: "  visiond evict vlm-best\n  visiond evict image-gen --force",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(opts, addr)
			if err != nil {
				return err
			}
			ev, err := c.Evict(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ev.Alias, ev.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "admin-addr", "", "Admin API address (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "Stop the worker even with requests in flight")
	return cmd
}
