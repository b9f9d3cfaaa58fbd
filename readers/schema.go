package readers

import (
	"errors"
	"fmt"
	"slices"
)

const (
	pkAlias          = "pk"
	defaultPKField   = "id"
	reverseSetSuffix = "_set"
	noReverseName    = "+"
)

/***** Field *****/

// Choice maps a stored value to its human-readable label.
type Choice struct {
	Value string
	Label string
}

// Field is a concrete column of a model.
type Field struct {
	Name    string
	Column  string
	Choices []Choice
}

// F creates a Field whose column has the same name.
func F(name string) Field {
	return Field{Name: name, Column: name}
}

// FC creates a Field stored in a differently named column.
func FC(name, column string) Field {
	return Field{Name: name, Column: column}
}

// Fields creates one Field per name.
func Fields(names ...string) []Field {
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, F(name))
	}

	return fields
}

// WithChoices returns a copy of the Field carrying the given choices.
func (f Field) WithChoices(choices ...Choice) Field {
	f.Choices = slices.Clone(choices)
	return f
}

// Display returns the label for value, or value formatted as a string when no choice matches.
func (f Field) Display(value any) any {
	if value == nil {
		return nil
	}

	formatted := fmt.Sprint(value)
	for _, choice := range f.Choices {
		if choice.Value == formatted {
			return choice.Label
		}
	}

	return formatted
}

/***** RelationshipDescriptor *****/

// RelationshipKind classifies how two models are connected.
type RelationshipKind int

const (
	// ForwardSingle is a many-to-one or one-to-one reference held by the model itself.
	ForwardSingle RelationshipKind = iota + 1

	// ReverseSingle is the reverse side of a one-to-one reference.
	ReverseSingle

	// ReverseMany is the reverse side of a many-to-one reference.
	ReverseMany

	// ManyToMany connects two models through a join table. Both sides use this kind.
	ManyToMany
)

func (k RelationshipKind) String() string {
	switch k {
	case ForwardSingle:
		return "forward"
	case ReverseSingle:
		return "reverse-single"
	case ReverseMany:
		return "reverse-many"
	case ManyToMany:
		return "many-to-many"
	default:
		return "unknown"
	}
}

// ToMany reports whether the relationship yields a collection.
func (k RelationshipKind) ToMany() bool {
	return k == ReverseMany || k == ManyToMany
}

// JoinTable describes the link table of a many-to-many relationship from one side's perspective.
type JoinTable struct {
	Table        string
	SourceColumn string // references the primary key of the side the descriptor belongs to
	TargetColumn string // references the primary key of the related side
}

// RelationshipDescriptor is the resolved metadata of one named relationship of a model.
type RelationshipDescriptor struct {
	Name         string
	Kind         RelationshipKind
	Model        *Model
	RelatedModel *Model

	// Field is the concrete field of Model that holds the reference (ForwardSingle only).
	Field string

	// RelatedField is the concrete field of RelatedModel that points back at Model
	// (ReverseSingle and ReverseMany only).
	RelatedField string

	// Join is set for ManyToMany only.
	Join JoinTable
}

// ToMany reports whether the relationship yields a collection.
func (rd RelationshipDescriptor) ToMany() bool {
	return rd.Kind.ToMany()
}

// IsZero reports whether the descriptor was never resolved.
func (rd RelationshipDescriptor) IsZero() bool {
	return rd.Kind == 0 || rd.Model == nil || rd.RelatedModel == nil
}

/***** Model *****/

// Model is a named entity backed by one table.
type Model struct {
	name             string
	table            string
	pk               string
	fields           []Field
	fieldIndex       map[string]int
	relationships    map[string]RelationshipDescriptor
	relationshipKeys []string
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) Table() string {
	return m.table
}

// PrimaryKey returns the name of the primary key field.
func (m *Model) PrimaryKey() string {
	return m.pk
}

// Fields returns the concrete fields in declaration order, primary key first.
func (m *Model) Fields() []Field {
	return slices.Clone(m.fields)
}

// Field looks up a concrete field. The alias "pk" resolves to the primary key field.
func (m *Model) Field(name string) (Field, bool) {
	if name == pkAlias {
		name = m.pk
	}

	idx, ok := m.fieldIndex[name]
	if !ok {
		return Field{}, false
	}

	return m.fields[idx], true
}

// ResolveFieldName maps the alias "pk" to the primary key field name and returns other names unchanged.
func (m *Model) ResolveFieldName(name string) string {
	if name == pkAlias {
		return m.pk
	}

	return name
}

// Column returns the column of a concrete field.
func (m *Model) Column(name string) (string, error) {
	field, ok := m.Field(name)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, m.name, name)
	}

	return field.Column, nil
}

// HasRelationship reports whether name is a relationship of the model.
func (m *Model) HasRelationship(name string) bool {
	_, ok := m.relationships[name]
	return ok
}

// Relationship resolves the descriptor for name.
func (m *Model) Relationship(name string) (RelationshipDescriptor, error) {
	rel, ok := m.relationships[name]
	if !ok {
		return RelationshipDescriptor{}, fmt.Errorf(
			"%w: model %q has no relationship named %q", ErrRelationshipMetadata, m.name, name,
		)
	}

	return rel, nil
}

// MustRelationship is like Relationship but panics when name cannot be resolved.
func (m *Model) MustRelationship(name string) RelationshipDescriptor {
	rel, err := m.Relationship(name)
	if err != nil {
		panic(err)
	}

	return rel
}

// Relationships returns all descriptors in declaration order.
func (m *Model) Relationships() []RelationshipDescriptor {
	rels := make([]RelationshipDescriptor, 0, len(m.relationshipKeys))
	for _, key := range m.relationshipKeys {
		rels = append(rels, m.relationships[key])
	}

	return rels
}

func (m *Model) hasAttribute(name string) bool {
	_, isField := m.fieldIndex[name]
	return isField || m.HasRelationship(name)
}

func (m *Model) addField(field Field) error {
	if field.Column == "" {
		field.Column = field.Name
	}

	if field.Name == "" || field.Name == pkAlias {
		return fmt.Errorf("%w: model %q declares a field with reserved or empty name %q", ErrInvalidSchema, m.name, field.Name)
	}

	if m.hasAttribute(field.Name) {
		return fmt.Errorf("%w: model %q declares %q twice", ErrInvalidSchema, m.name, field.Name)
	}

	m.fieldIndex[field.Name] = len(m.fields)
	m.fields = append(m.fields, field)

	return nil
}

func (m *Model) addRelationship(rel RelationshipDescriptor) error {
	if rel.Name == "" || rel.Name == pkAlias {
		return fmt.Errorf("%w: model %q declares a relationship with reserved or empty name %q", ErrInvalidSchema, m.name, rel.Name)
	}

	_, isField := m.fieldIndex[rel.Name]
	ownReference := rel.Kind == ForwardSingle && rel.Field == rel.Name
	if m.HasRelationship(rel.Name) || (isField && !ownReference) {
		return fmt.Errorf("%w: model %q declares %q twice", ErrInvalidSchema, m.name, rel.Name)
	}

	m.relationships[rel.Name] = rel
	m.relationshipKeys = append(m.relationshipKeys, rel.Name)

	return nil
}

/***** Registry *****/

// Registry holds all models of a schema.
type Registry struct {
	models    map[string]*Model
	modelKeys []string
}

// Model looks up a model by name.
func (r *Registry) Model(name string) (*Model, error) {
	model, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}

	return model, nil
}

// MustModel is like Model but panics when name is unknown.
func (r *Registry) MustModel(name string) *Model {
	model, err := r.Model(name)
	if err != nil {
		panic(err)
	}

	return model
}

// Models returns all models in declaration order.
func (r *Registry) Models() []*Model {
	models := make([]*Model, 0, len(r.modelKeys))
	for _, key := range r.modelKeys {
		models = append(models, r.models[key])
	}

	return models
}

/***** SchemaBuilder *****/

// ModelDecl declares a model. PrimaryKey defaults to "id".
type ModelDecl struct {
	Name       string
	Table      string
	PrimaryKey string
	Fields     []Field
}

// RelationDecl declares a relationship between two models.
// RelatedName names the reverse side; "" derives a default and "+" suppresses it.
type RelationDecl struct {
	Kind        RelationDeclKind
	Model       string
	Name        string
	Column      string
	To          string
	RelatedName string
	Join        JoinTable
}

// RelationDeclKind selects the kind of a declared relationship.
type RelationDeclKind string

const (
	ForeignKeyRelation RelationDeclKind = "foreign_key"
	OneToOneRelation   RelationDeclKind = "one_to_one"
	ManyToManyRelation RelationDeclKind = "many_to_many"
)

// SchemaBuilder collects declarations and resolves them into a Registry.
type SchemaBuilder struct {
	models    []ModelDecl
	relations []RelationDecl
}

// BuildSchema starts a new schema declaration.
func BuildSchema() *SchemaBuilder {
	return &SchemaBuilder{}
}

// Model declares a model.
func (b *SchemaBuilder) Model(decl ModelDecl) *SchemaBuilder {
	b.models = append(b.models, decl)
	return b
}

// Relation declares a relationship.
func (b *SchemaBuilder) Relation(decl RelationDecl) *SchemaBuilder {
	b.relations = append(b.relations, decl)
	return b
}

// ForeignKey declares a many-to-one reference from model to the model named to, stored in column.
// It also declares the reverse-many side on the target model.
func (b *SchemaBuilder) ForeignKey(model, name, column, to, relatedName string) *SchemaBuilder {
	return b.Relation(RelationDecl{
		Kind:        ForeignKeyRelation,
		Model:       model,
		Name:        name,
		Column:      column,
		To:          to,
		RelatedName: relatedName,
	})
}

// OneToOne declares a one-to-one reference from model to the model named to, stored in column.
// It also declares the reverse-single side on the target model.
func (b *SchemaBuilder) OneToOne(model, name, column, to, relatedName string) *SchemaBuilder {
	return b.Relation(RelationDecl{
		Kind:        OneToOneRelation,
		Model:       model,
		Name:        name,
		Column:      column,
		To:          to,
		RelatedName: relatedName,
	})
}

// ManyToMany declares a many-to-many relationship through a join table, seen from model.
// It also declares the mirrored side on the target model.
func (b *SchemaBuilder) ManyToMany(model, name, to, relatedName string, join JoinTable) *SchemaBuilder {
	return b.Relation(RelationDecl{
		Kind:        ManyToManyRelation,
		Model:       model,
		Name:        name,
		To:          to,
		RelatedName: relatedName,
		Join:        join,
	})
}

// Finalize resolves all declarations into a Registry.
func (b *SchemaBuilder) Finalize() (*Registry, error) {
	registry := &Registry{models: make(map[string]*Model, len(b.models))}

	for _, decl := range b.models {
		model, err := newModel(decl)
		if err != nil {
			return nil, err
		}

		if _, exists := registry.models[model.name]; exists {
			return nil, fmt.Errorf("%w: model %q declared twice", ErrInvalidSchema, model.name)
		}

		registry.models[model.name] = model
		registry.modelKeys = append(registry.modelKeys, model.name)
	}

	for _, decl := range b.relations {
		if err := registry.resolveRelation(decl); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func newModel(decl ModelDecl) (*Model, error) {
	if decl.Name == "" || decl.Table == "" {
		return nil, fmt.Errorf("%w: model declarations need a name and a table", ErrInvalidSchema)
	}

	pk := decl.PrimaryKey
	if pk == "" {
		pk = defaultPKField
	}

	model := &Model{
		name:          decl.Name,
		table:         decl.Table,
		pk:            pk,
		fieldIndex:    make(map[string]int),
		relationships: make(map[string]RelationshipDescriptor),
	}

	pkField := F(pk)
	if idx := slices.IndexFunc(decl.Fields, func(f Field) bool { return f.Name == pk }); idx >= 0 {
		pkField = decl.Fields[idx]
	}

	if err := model.addField(pkField); err != nil {
		return nil, err
	}

	for _, field := range decl.Fields {
		if field.Name == pk {
			continue
		}

		if err := model.addField(field); err != nil {
			return nil, err
		}
	}

	return model, nil
}

func (r *Registry) resolveRelation(decl RelationDecl) error {
	model, fromErr := r.Model(decl.Model)
	related, toErr := r.Model(decl.To)
	if err := errors.Join(fromErr, toErr); err != nil {
		return errors.Join(ErrInvalidSchema, err)
	}

	switch decl.Kind {
	case ForeignKeyRelation, OneToOneRelation:
		return r.resolveReference(decl, model, related)

	case ManyToManyRelation:
		return r.resolveManyToMany(decl, model, related)

	default:
		return fmt.Errorf("%w: unknown relation kind %q", ErrInvalidSchema, decl.Kind)
	}
}

func (r *Registry) resolveReference(decl RelationDecl, model, related *Model) error {
	column := decl.Column
	if column == "" {
		column = decl.Name + "_id"
	}

	if err := model.addField(FC(decl.Name, column)); err != nil {
		return err
	}

	if err := model.addRelationship(RelationshipDescriptor{
		Name:         decl.Name,
		Kind:         ForwardSingle,
		Model:        model,
		RelatedModel: related,
		Field:        decl.Name,
	}); err != nil {
		return err
	}

	if decl.RelatedName == noReverseName {
		return nil
	}

	reverseKind := ReverseMany
	reverseName := decl.RelatedName
	if decl.Kind == OneToOneRelation {
		reverseKind = ReverseSingle
		if reverseName == "" {
			reverseName = model.name
		}
	} else if reverseName == "" {
		reverseName = model.name + reverseSetSuffix
	}

	return related.addRelationship(RelationshipDescriptor{
		Name:         reverseName,
		Kind:         reverseKind,
		Model:        related,
		RelatedModel: model,
		RelatedField: decl.Name,
	})
}

func (r *Registry) resolveManyToMany(decl RelationDecl, model, related *Model) error {
	join := decl.Join
	if join.Table == "" || join.SourceColumn == "" || join.TargetColumn == "" {
		return fmt.Errorf("%w: many-to-many %s.%s needs a join table with both columns", ErrInvalidSchema, model.name, decl.Name)
	}

	if err := model.addRelationship(RelationshipDescriptor{
		Name:         decl.Name,
		Kind:         ManyToMany,
		Model:        model,
		RelatedModel: related,
		Join:         join,
	}); err != nil {
		return err
	}

	if decl.RelatedName == noReverseName {
		return nil
	}

	reverseName := decl.RelatedName
	if reverseName == "" {
		reverseName = model.name + reverseSetSuffix
	}

	return related.addRelationship(RelationshipDescriptor{
		Name:         reverseName,
		Kind:         ManyToMany,
		Model:        related,
		RelatedModel: model,
		Join: JoinTable{
			Table:        join.Table,
			SourceColumn: join.TargetColumn,
			TargetColumn: join.SourceColumn,
		},
	})
}
