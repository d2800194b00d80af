package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moochat/api"
	"moochat/model"
	"moochat/storage"
)

func newConversationsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "List, show, export and delete conversations",
	}
	cmd.AddCommand(
		newConversationsListCmd(v),
		newConversationsShowCmd(v),
		newConversationsNewCmd(v),
		newConversationsRenameCmd(v),
		newConversationsRemoveCmd(v),
		newConversationsExportCmd(v),
		newConversationsSearchCmd(v),
	)
	return cmd
}

func newConversationsListCmd(v *viper.Viper) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, !offline)
			if err != nil {
				return err
			}

			if offline {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				cached, err := store.Conversations()
				if err != nil {
					return err
				}
				rows := make([][]string, len(cached))
				for i, c := range cached {
					rows[i] = []string{c.ID, cachedTitle(c), strconv.Itoa(c.MessageCount), c.UpdatedAt.Local().Format(time.DateTime)}
				}
				printTable(a.out, []string{"ID", "TITLE", "MESSAGES", "UPDATED"}, rows)
				return nil
			}

			convs, err := a.client.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			if len(convs) == 0 {
				fmt.Fprintln(a.out, "No conversations yet.")
				return nil
			}
			rows := make([][]string, len(convs))
			for i, c := range convs {
				rows[i] = []string{c.ID, c.DisplayTitle()}
			}
			printTable(a.out, []string{"ID", "TITLE"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "list the local cache instead of asking the server")
	return cmd
}

func cachedTitle(c storage.CachedConversation) string {
	if c.Title == "" {
		return "New conversation"
	}
	return c.Title
}

func newConversationsShowCmd(v *viper.Viper) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, !offline)
			if err != nil {
				return err
			}

			var msgs []model.Message
			if offline {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				if msgs, err = store.Messages(args[0]); err != nil {
					return err
				}
				if len(msgs) == 0 {
					return fmt.Errorf("conversation %s is not cached", args[0])
				}
			} else if msgs, err = a.client.ListMessages(cmd.Context(), args[0]); err != nil {
				return err
			}

			printMessages(a.out, msgs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "read the local cache instead of asking the server")
	return cmd
}

func printMessages(w io.Writer, msgs []model.Message) {
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		switch {
		case m.ToolUse != nil:
			fmt.Fprintf(w, "[%s] %s (%s)\n", m.Role, m.ToolUse.Name, m.ToolUse.State)
			if m.Content != "" {
				fmt.Fprintln(w, m.Content)
			}
		case m.Role == model.RoleAssistant && m.Model != "":
			fmt.Fprintf(w, "[%s, %s]\n%s\n", m.Role, m.Model, m.Content)
		default:
			fmt.Fprintf(w, "[%s]\n%s\n", m.Role, m.Content)
		}
	}
}

func newConversationsNewCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Create an empty conversation and print its id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			var title string
			if len(args) == 1 {
				title = args[0]
			}
			conv, err := a.client.CreateConversation(cmd.Context(), title)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, conv.ID)
			return nil
		},
	}
}

func newConversationsRenameCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			conv, err := a.client.RenameConversation(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Renamed %s to %q\n", conv.ID, conv.DisplayTitle())
			return nil
		},
	}
}

func newConversationsRemoveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a conversation on the server and from the local cache",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			id := args[0]
			if err := a.client.DeleteConversation(cmd.Context(), id); err != nil && !api.IsNotFound(err) {
				return err
			}
			if store, err := a.openStore(); err == nil {
				defer store.Close()
				if err := store.DeleteConversation(id); err != nil {
					fmt.Fprintf(a.errOut, "Warning: failed to drop cached copy: %v\n", err)
				}
			}
			fmt.Fprintf(a.out, "Deleted conversation %s\n", id)
			return nil
		},
	}
}

func newConversationsExportCmd(v *viper.Viper) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a conversation to a JSON file",
		Long: "Write a conversation to a JSON file. Conversations missing from the\n" +
			"local cache are fetched from the server first. The default path is\n" +
			"~/Downloads/moochat-<title>-<timestamp>.json.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			a, err := newApp(cmd, v, false)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			conv, err := store.Conversation(id)
			if err != nil {
				return err
			}
			if conv == nil {
				if a.client.Token() == "" {
					return fmt.Errorf("conversation %s is not cached, log in to fetch it", id)
				}
				fetched, err := a.client.GetConversation(cmd.Context(), id)
				if err != nil {
					return err
				}
				msgs, err := a.client.ListMessages(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := store.SaveTranscript(fetched, msgs); err != nil {
					return err
				}
				conv = &fetched
			}

			path := output
			if path == "" {
				path = storage.GenerateExportPath(conv.DisplayTitle(), time.Now())
			}
			if err := store.ExportJSON(id, path); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Exported to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write")
	return cmd
}

func newConversationsSearchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search cached messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, false)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			matches, err := store.SearchMessages(args[0])
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Fprintf(a.out, "No cached messages match %q\n", args[0])
				return nil
			}
			rows := make([][]string, len(matches))
			for i, m := range matches {
				rows[i] = []string{m.ConversationID, m.Title, m.Role, m.Preview}
			}
			printTable(a.out, []string{"CONVERSATION", "TITLE", "ROLE", "MATCH"}, rows)
			return nil
		},
	}
}
