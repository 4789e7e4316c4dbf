package cel

// SelectorExamples are shown in the CLI help for list --where.
var SelectorExamples = map[string]string{
	"enabled_only":     `enabled`,
	"by_name_prefix":   `name.startsWith("sql")`,
	"non_empty":        `pattern_count > 0`,
	"has_pattern":      `patterns.exists(p, p.name == "union-select")`,
	"disabled_pattern": `patterns.exists(p, p.enabled == false)`,
	"description_text": `description.lowerAscii().contains("legacy")`,
	"key_match":        `key.endsWith("-prod")`,
	"combined":         `enabled && pattern_count >= 5 && !name.startsWith("test")`,
}
