package fields

// Vocabulary 技能匹配用的固定词表，全部小写。构造后只读。
type Vocabulary struct {
	Technical []string `yaml:"technical"`
	Soft      []string `yaml:"soft"`
	Tools     []string `yaml:"tools"`
}

// DefaultVocabulary 返回内置词表的副本
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Technical: []string{
			"python", "javascript", "java", "c++", "c#", "php", "sql", "html", "css",
			"react", "angular", "vue", "node.js", "django", "flask", "spring",
			"aws", "azure", "docker", "kubernetes", "git", "mongodb", "mysql",
			"postgresql", "redis",
		},
		Soft: []string{
			"communication", "leadership", "teamwork", "problem solving",
			"time management", "adaptability", "creativity", "critical thinking",
			"emotional intelligence", "conflict resolution", "project management",
			"analytical skills", "presentation",
		},
		Tools: []string{
			"excel", "word", "powerpoint", "jira", "confluence", "slack", "teams",
			"trello", "asana",
		},
	}
}

// Merge 在默认词表后追加额外条目（忽略重复项），用于配置扩展
func (v Vocabulary) Merge(extra Vocabulary) Vocabulary {
	return Vocabulary{
		Technical: appendUnique(v.Technical, extra.Technical),
		Soft:      appendUnique(v.Soft, extra.Soft),
		Tools:     appendUnique(v.Tools, extra.Tools),
	}
}

func appendUnique(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, entry := range list {
			if entry == "" {
				continue
			}
			if _, ok := seen[entry]; ok {
				continue
			}
			seen[entry] = struct{}{}
			out = append(out, entry)
		}
	}
	return out
}
