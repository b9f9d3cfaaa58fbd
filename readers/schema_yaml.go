package readers

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

type yamlSchema struct {
	Models    []yamlModel    `yaml:"models"`
	Relations []yamlRelation `yaml:"relations"`
}

type yamlModel struct {
	Name       string      `yaml:"name"`
	Table      string      `yaml:"table"`
	PrimaryKey string      `yaml:"primary_key"`
	Fields     []yamlField `yaml:"fields"`
}

type yamlField struct {
	Name    string       `yaml:"name"`
	Column  string       `yaml:"column"`
	Choices []yamlChoice `yaml:"choices"`
}

type yamlChoice struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

type yamlRelation struct {
	Kind        string   `yaml:"kind"`
	Model       string   `yaml:"model"`
	Name        string   `yaml:"name"`
	Column      string   `yaml:"column"`
	To          string   `yaml:"to"`
	RelatedName string   `yaml:"related_name"`
	Join        yamlJoin `yaml:"join"`
}

type yamlJoin struct {
	Table        string `yaml:"table"`
	SourceColumn string `yaml:"source_column"`
	TargetColumn string `yaml:"target_column"`
}

// UnmarshalYAML accepts either a bare field name or a mapping with name, column and choices.
func (f *yamlField) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Name = node.Value
		return nil
	}

	type plain yamlField

	return node.Decode((*plain)(f))
}

// LoadSchemaYAML parses a schema document and resolves it into a Registry.
//
//	models:
//	  - name: widget
//	    table: widgets
//	    fields: [name, value]
//	relations:
//	  - {kind: foreign_key, model: widget, name: owner, column: owner_id, to: owner, related_name: widget_set}
func LoadSchemaYAML(data []byte) (*Registry, error) {
	var doc yamlSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidSchema, err)
	}

	builder := BuildSchema()

	for _, m := range doc.Models {
		fields := make([]Field, 0, len(m.Fields))
		for _, f := range m.Fields {
			field := FC(f.Name, f.Column)
			if f.Column == "" {
				field = F(f.Name)
			}

			for _, c := range f.Choices {
				field.Choices = append(field.Choices, Choice{Value: c.Value, Label: c.Label})
			}

			fields = append(fields, field)
		}

		builder.Model(ModelDecl{Name: m.Name, Table: m.Table, PrimaryKey: m.PrimaryKey, Fields: fields})
	}

	for _, r := range doc.Relations {
		kind := RelationDeclKind(r.Kind)
		switch kind {
		case ForeignKeyRelation, OneToOneRelation, ManyToManyRelation:
		default:
			return nil, fmt.Errorf("%w: relation %s.%s has unknown kind %q", ErrInvalidSchema, r.Model, r.Name, r.Kind)
		}

		builder.Relation(RelationDecl{
			Kind:        kind,
			Model:       r.Model,
			Name:        r.Name,
			Column:      r.Column,
			To:          r.To,
			RelatedName: r.RelatedName,
			Join: JoinTable{
				Table:        r.Join.Table,
				SourceColumn: r.Join.SourceColumn,
				TargetColumn: r.Join.TargetColumn,
			},
		})
	}

	return builder.Finalize()
}
