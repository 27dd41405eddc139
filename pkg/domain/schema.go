package domain

import "strings"

// Canonical column names, in persisted order.
const (
	ColumnFirstName    = "first_name"
	ColumnLastName     = "last_name"
	ColumnIDNumber     = "id_number"
	ColumnAge          = "age"
	ColumnSex          = "sex"
	ColumnFamilyGroup  = "family_group"
	ColumnStreet       = "street"
	ColumnHouseNumber  = "house_number"
	ColumnPathology    = "pathology"
	ColumnMedications  = "medications"
	ColumnRegisteredAt = "registered_at"
)

// Schema revisions of the persisted table.
const (
	// SchemaV1 is the original registration form.
	SchemaV1 = 1
	// SchemaV2 added household columns.
	SchemaV2 = 2
	// SchemaV3 added sex.
	SchemaV3 = 3

	CurrentSchemaVersion = SchemaV3
)

// Column declares one persisted field, the revision that introduced it and the
// value synthesized when loading data written before that revision.
type Column struct {
	Name    string
	Since   int
	Default string
	// Aliases are legacy header spellings accepted on load.
	Aliases []string
}

// Schema lists the canonical columns in persisted order.
var Schema = []Column{
	{Name: ColumnFirstName, Since: SchemaV1, Aliases: []string{"Nombre"}},
	{Name: ColumnLastName, Since: SchemaV1, Aliases: []string{"Apellido"}},
	{Name: ColumnIDNumber, Since: SchemaV1, Aliases: []string{"Cedula", "Cédula"}},
	{Name: ColumnAge, Since: SchemaV1, Default: "0", Aliases: []string{"Edad"}},
	{Name: ColumnSex, Since: SchemaV3, Default: string(SexUnspecified), Aliases: []string{"Sexo"}},
	{Name: ColumnFamilyGroup, Since: SchemaV2, Aliases: []string{"Grupo_Familiar", "Grupo Familiar"}},
	{Name: ColumnStreet, Since: SchemaV2, Aliases: []string{"Calle"}},
	{Name: ColumnHouseNumber, Since: SchemaV2, Aliases: []string{"Numero_Casa", "Número_Casa", "Numero Casa"}},
	{Name: ColumnPathology, Since: SchemaV1, Aliases: []string{"Patologia", "Patología"}},
	{Name: ColumnMedications, Since: SchemaV1, Aliases: []string{"Medicamentos"}},
	{Name: ColumnRegisteredAt, Since: SchemaV1, Aliases: []string{"Fecha_Registro", "Fecha"}},
}

// ColumnNames returns the canonical header row.
func ColumnNames() []string {
	names := make([]string, len(Schema))
	for i, c := range Schema {
		names[i] = c.Name
	}
	return names
}

// LookupColumn resolves a header cell, canonical or legacy, to its column.
func LookupColumn(header string) (Column, bool) {
	key := normalizeHeader(header)
	for _, c := range Schema {
		if normalizeHeader(c.Name) == key {
			return c, true
		}
		for _, alias := range c.Aliases {
			if normalizeHeader(alias) == key {
				return c, true
			}
		}
	}
	return Column{}, false
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}
