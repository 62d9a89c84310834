package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/taskorchestrator/processor/openspeccompiler"
)

func newTemplateCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "print-openspec-template",
		Short: "Print an example tasks.md scaffold",
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := openspeccompiler.GetOpenSpecTasksTemplate(lang)
			if err != nil {
				return err
			}
			fmt.Print(template)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", openspeccompiler.DefaultTemplateLang, "template language (ja or en)")
	return cmd
}
