package domain

// EmbeddingDim is the fixed dimensionality of every stored embedding
// (BGE-large-en-v1.5). The vector columns are declared with this size,
// so it cannot be changed without a migration.
const EmbeddingDim = 1024

type SourceType string

const (
	SourceTextbook SourceType = "textbook"
	SourcePaper    SourceType = "paper"
	SourceCodeRepo SourceType = "code_repo"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceTextbook, SourcePaper, SourceCodeRepo:
		return true
	}
	return false
}

type ConceptType string

const (
	ConceptMethod     ConceptType = "method"
	ConceptAssumption ConceptType = "assumption"
	ConceptProblem    ConceptType = "problem"
	ConceptDefinition ConceptType = "definition"
	ConceptTheorem    ConceptType = "theorem"
)

func (t ConceptType) Valid() bool {
	switch t {
	case ConceptMethod, ConceptAssumption, ConceptProblem, ConceptDefinition, ConceptTheorem:
		return true
	}
	return false
}

type RelationshipType string

const (
	RelRequires      RelationshipType = "requires"
	RelUses          RelationshipType = "uses"
	RelAddresses     RelationshipType = "addresses"
	RelGeneralizes   RelationshipType = "generalizes"
	RelSpecializes   RelationshipType = "specializes"
	RelAlternativeTo RelationshipType = "alternative_to"
	RelExtends       RelationshipType = "extends"
)

func (t RelationshipType) Valid() bool {
	switch t {
	case RelRequires, RelUses, RelAddresses, RelGeneralizes, RelSpecializes, RelAlternativeTo, RelExtends:
		return true
	}
	return false
}

type MentionType string

const (
	MentionDefines   MentionType = "defines"
	MentionReference MentionType = "reference"
	MentionExample   MentionType = "example"
)

func (t MentionType) Valid() bool {
	switch t {
	case MentionDefines, MentionReference, MentionExample:
		return true
	}
	return false
}
