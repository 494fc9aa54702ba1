package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aptsec/samplerelay/pkg/rulemap"
)

var rulesNamespace string

var rulesCmd = &cobra.Command{
	Use:   "rules [ruleName]",
	Short: "Look up the SHA256 hashes matched by a YARA rule",
	Long: `Look up the deduplicated SHA256 hash list for a YARA rule in the
configured rule hash mapping file. With --namespace the lookup matches one
exact rule file; without it, hashes from every namespace defining the rule
are merged. Hashes are printed one per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.RuleHashMappingFile == "" {
			return fmt.Errorf("no ruleHashMappingFile configured")
		}

		mapping, err := rulemap.Load(cfg.RuleHashMappingFile)
		if err != nil {
			return err
		}

		rule := args[0]
		hashes := mapping.SHA256List(rule, rulesNamespace)
		if len(hashes) == 0 {
			return fmt.Errorf("no hashes found for rule %q", rule)
		}

		for _, h := range hashes {
			fmt.Println(h)
		}
		return nil
	},
}

func init() {
	rulesCmd.Flags().StringVarP(&rulesNamespace, "namespace", "n", "", "Rule file path for exact matching")
}
