package session

// Kind is the closed set of session families the academy runs.
type Kind string

const (
	KindQuran       Kind = "quran"
	KindAcademic    Kind = "academic"
	KindInteractive Kind = "interactive"
)

// Default display titles.
const (
	DefaultQuranTitle    = "جلسة قرآنية"
	DefaultAcademicTitle = "جلسة أكاديمية"
	DefaultTitle         = "جلسة"
	UnknownKindLabel     = "unknown"
)

// kindTraits holds the per-kind behaviour looked up by Kind.
type kindTraits struct {
	label        string
	defaultTitle func(s *Session) string
	individual   func(s *Session) bool
}

func oneToOne(s *Session) bool {
	return s.Type == TypeIndividual || s.Type == TypeTrial
}

var kindTable = map[Kind]kindTraits{
	KindQuran: {
		label:        "quran",
		defaultTitle: func(*Session) string { return DefaultQuranTitle },
		individual:   oneToOne,
	},
	KindAcademic: {
		label:        "academic",
		defaultTitle: func(*Session) string { return DefaultAcademicTitle },
		individual:   oneToOne,
	},
	KindInteractive: {
		label: "interactive",
		defaultTitle: func(s *Session) string {
			if s.CourseTitle != "" {
				return s.CourseTitle
			}
			return DefaultTitle
		},
		individual: func(*Session) bool { return false },
	},
}

// ParseKind validates a persisted kind value.
func ParseKind(v string) (Kind, bool) {
	k := Kind(v)
	_, ok := kindTable[k]
	return k, ok
}

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	_, ok := kindTable[k]
	return ok
}

// Label returns the short type label, or "unknown".
func (k Kind) Label() string {
	if t, ok := kindTable[k]; ok {
		return t.label
	}
	return UnknownKindLabel
}

// IsIndividual reports whether the session is a one-to-one session.
// Interactive course sessions are never individual.
func (s *Session) IsIndividual() bool {
	t, ok := kindTable[s.Kind]
	if !ok {
		return false
	}
	return t.individual(s)
}

// DisplayTitle returns the explicit title or the kind's default.
func (s *Session) DisplayTitle() string {
	if s.Title != nil && *s.Title != "" {
		return *s.Title
	}
	if t, ok := kindTable[s.Kind]; ok {
		return t.defaultTitle(s)
	}
	return DefaultTitle
}
