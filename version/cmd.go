package version

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// CommandVersion prints the version of binaryName and the commit it was
// built from.
func CommandVersion(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "version",
		Short:   "Prints version of this binary.",
		Aliases: []string{"v"},
		Example: fmt.Sprintf("%s version", binaryName),
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), Info(binaryName))
		},
	}

	return cmd
}

// Info renders the version block printed by the version command.
func Info(binaryName string) string {
	v := Version()
	commit, ts := CommitInfo()

	if v == "" {
		v = "main"
	}

	var sb strings.Builder
	_, _ = sb.WriteString("Binary:        " + binaryName + "\n")
	_, _ = sb.WriteString("Version:       " + v + "\n")
	_, _ = sb.WriteString("Git Commit:    " + commit + "\n")
	_, _ = sb.WriteString("Git Timestamp: " + ts + "\n")

	return sb.String()
}
