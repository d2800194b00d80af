package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moochat/api"
	"moochat/mcp"
	"moochat/model"
)

const probeTimeout = 20 * time.Second

func newMCPCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage MCP tool servers",
	}
	cmd.AddCommand(
		newMCPListCmd(v),
		newMCPAddCmd(v),
		newMCPEditCmd(v),
		newMCPRemoveCmd(v),
		newMCPToolsCmd(v),
		newMCPProbeCmd(v),
		newMCPPreconfiguredCmd(v),
	)
	return cmd
}

// parseHeaders turns repeated "Name: value" or "Name=value" flags into a map.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			name, value, ok = strings.Cut(h, "=")
		}
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want Name: value", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// headersValue is the form headers take in an MCP configuration blob.
func headersValue(hdrs map[string]string) map[string]any {
	raw := make(map[string]any, len(hdrs))
	for k, val := range hdrs {
		raw[k] = val
	}
	return raw
}

func newMCPListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List MCP configs and how many tools each exposes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			reg := mcp.NewRegistry(a.client)
			if err := reg.Refresh(cmd.Context()); err != nil {
				return err
			}
			configs := reg.Configs()
			if len(configs) == 0 {
				fmt.Fprintln(a.out, "No MCP servers. Add one with: moochat mcp add --name NAME --url URL")
				return nil
			}
			rows := make([][]string, len(configs))
			for i, c := range configs {
				tools := strconv.Itoa(len(reg.Tools(c.ID)))
				if err := reg.ToolError(c.ID); err != nil {
					tools = "error: " + err.Error()
				}
				rows[i] = []string{c.ID, c.Name, c.URL, tools}
			}
			printTable(a.out, []string{"ID", "NAME", "URL", "TOOLS"}, rows)
			return nil
		},
	}
}

func newMCPAddCmd(v *viper.Viper) *cobra.Command {
	var (
		name    string
		url     string
		headers []string
		noProbe bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an MCP server with the backend",
		Long: "Register an MCP server with the backend. The server is probed first\n" +
			"so that unreachable URLs are caught before they are saved.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" || url == "" {
				return fmt.Errorf("--name and --url are required")
			}
			hdrs, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}

			if !noProbe {
				res, err := probe(cmd, url, hdrs)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.errOut, "Reached %s over %s, %d tools\n", serverLabel(res), res.Transport, len(res.Tools))
			}

			in := api.MCPConfigInput{Name: name, URL: url}
			if len(hdrs) > 0 {
				in.Configuration = map[string]any{"headers": headersValue(hdrs)}
			}
			cfg, err := a.client.CreateMCPConfig(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added MCP server %s (%s)\n", cfg.Name, cfg.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&name, "name", "n", "", "display name")
	f.StringVarP(&url, "url", "u", "", "server URL")
	f.StringArrayVarP(&headers, "header", "H", nil, "request header as Name: value, repeatable")
	f.BoolVar(&noProbe, "no-probe", false, "save without connecting to the server first")
	return cmd
}

func newMCPEditCmd(v *viper.Viper) *cobra.Command {
	var (
		name    string
		url     string
		headers []string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the name, URL or headers of an MCP config",
		Long: "Change the name, URL or headers of an MCP config. Flags that are not\n" +
			"given keep their current value; -H replaces all headers.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			cur, err := a.client.GetMCPConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			in := api.MCPConfigInput{Name: cur.Name, URL: cur.URL, Configuration: cur.Configuration}
			if cmd.Flags().Changed("name") {
				in.Name = name
			}
			if cmd.Flags().Changed("url") {
				in.URL = url
			}
			if cmd.Flags().Changed("header") {
				hdrs, err := parseHeaders(headers)
				if err != nil {
					return err
				}
				if in.Configuration == nil {
					in.Configuration = map[string]any{}
				}
				in.Configuration["headers"] = headersValue(hdrs)
			}

			cfg, err := a.client.UpdateMCPConfig(cmd.Context(), cur.ID, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated MCP server %s (%s)\n", cfg.Name, cfg.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&name, "name", "n", "", "new display name")
	f.StringVarP(&url, "url", "u", "", "new server URL")
	f.StringArrayVarP(&headers, "header", "H", nil, "request header as Name: value, repeatable")
	return cmd
}

func newMCPRemoveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete an MCP config",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			if err := a.client.DeleteMCPConfig(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted MCP config %s\n", args[0])
			return nil
		},
	}
}

func newMCPToolsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "tools [config-id]",
		Short: "List the tools of one MCP config, or of all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			var tools []model.MCPTool
			if len(args) == 1 {
				tools, err = a.client.ListConfigTools(cmd.Context(), args[0])
			} else {
				tools, err = a.client.ListMCPTools(cmd.Context(), "")
			}
			if err != nil {
				return err
			}
			printTools(a.out, tools)
			return nil
		},
	}
}

func printTools(w io.Writer, tools []model.MCPTool) {
	if len(tools) == 0 {
		fmt.Fprintln(w, "No tools.")
		return
	}
	rows := make([][]string, len(tools))
	for i, t := range tools {
		rows[i] = []string{t.Name, strings.Join(mcp.RequiredArgs(t.InputSchema), ", "), truncateLine(t.Description, 60)}
	}
	printTable(w, []string{"TOOL", "REQUIRED", "DESCRIPTION"}, rows)
}

func truncateLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func newMCPProbeCmd(v *viper.Viper) *cobra.Command {
	var headers []string

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Connect to an MCP server and list its tools without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdrs, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			if _, err := loadConfig(v); err != nil {
				return err
			}
			res, err := probe(cmd, args[0], hdrs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:    %s\n", serverLabel(res))
			fmt.Fprintf(out, "Transport: %s\n", res.Transport)
			printTools(out, mcp.ConvertTools(res.Tools, ""))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header as Name: value, repeatable")
	return cmd
}

func probe(cmd *cobra.Command, url string, headers map[string]string) (*mcp.ProbeResult, error) {
	ctx, cancel := contextWithTimeout(cmd, probeTimeout)
	defer cancel()
	return mcp.Probe(ctx, url, headers)
}

func serverLabel(res *mcp.ProbeResult) string {
	switch {
	case res.ServerName == "":
		return "unnamed server"
	case res.ServerVersion == "":
		return res.ServerName
	default:
		return res.ServerName + " " + res.ServerVersion
	}
}

func newMCPPreconfiguredCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "preconfigured",
		Aliases: []string{"builtin"},
		Short:   "List and toggle the server's built-in tool servers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			pre, err := a.client.ListPreconfigured(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, len(pre))
			for i, p := range pre {
				state := "disabled"
				if p.Enabled {
					state = "enabled"
				}
				rows[i] = []string{p.Code, state, strconv.Itoa(len(p.Tools))}
			}
			printTable(a.out, []string{"CODE", "STATE", "TOOLS"}, rows)
			return nil
		},
	}
	cmd.AddCommand(newMCPToggleCmd(v, true), newMCPToggleCmd(v, false))
	return cmd
}

func newMCPToggleCmd(v *viper.Viper, enable bool) *cobra.Command {
	use, short, verb := "disable <code>", "Disable a built-in tool server", "Disabled"
	if enable {
		use, short, verb = "enable <code>", "Enable a built-in tool server", "Enabled"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			p, err := a.client.TogglePreconfigured(cmd.Context(), args[0], enable)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", verb, p.Code)
			return nil
		},
	}
}
