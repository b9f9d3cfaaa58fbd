package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [model...]",
		Short: "Print the fields and relationships of schema models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(rootOpts, args, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runDescribe(rootOpts *RootOptions, names []string, w io.Writer) error {
	registry, err := loadSchema(rootOpts.SchemaPath)
	if err != nil {
		return err
	}

	models := registry.Models()
	if len(names) > 0 {
		models = models[:0]
		for _, name := range names {
			model, modelErr := registry.Model(name)
			if modelErr != nil {
				return modelErr
			}

			models = append(models, model)
		}
	}

	for i, model := range models {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}

		if err := describeModel(w, model); err != nil {
			return err
		}
	}

	return nil
}

func describeModel(w io.Writer, model *readers.Model) error {
	lines := []string{fmt.Sprintf("%s (table %s, pk %s)", model.Name(), model.Table(), model.PrimaryKey()), "  fields:"}

	for _, field := range model.Fields() {
		line := "    " + field.Name
		if field.Column != field.Name {
			line += " -> " + field.Column
		}

		if len(field.Choices) > 0 {
			line += fmt.Sprintf(" (%d choices)", len(field.Choices))
		}

		lines = append(lines, line)
	}

	if rels := model.Relationships(); len(rels) > 0 {
		lines = append(lines, "  relationships:")

		for _, rel := range rels {
			lines = append(lines, fmt.Sprintf("    %s: %s -> %s%s", rel.Name, rel.Kind, rel.RelatedModel.Name(), via(rel)))
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

func via(rel readers.RelationshipDescriptor) string {
	switch rel.Kind {
	case readers.ReverseSingle, readers.ReverseMany:
		return " (via " + rel.RelatedField + ")"
	case readers.ManyToMany:
		return " (via " + rel.Join.Table + ")"
	default:
		return ""
	}
}
