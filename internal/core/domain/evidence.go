package domain

// Channel identifies the retrieval source that produced an evidence item.
type Channel string

const (
	ChannelWeb     Channel = "WEB"
	ChannelVector  Channel = "VECTOR"
	ChannelKG      Channel = "KG"
	ChannelSelfAsk Channel = "SELF_ASK"
	ChannelAnalyze Channel = "ANALYZE"
)

// Evidence is a single retrieved text unit. It is produced by a source
// adapter and consumed read-only downstream; fusion and rerank stages copy
// it rather than mutate it in place.
type Evidence struct {
	Title     string  `json:"title"`
	Text      string  `json:"text"`
	SourceURL string  `json:"source_url,omitempty"`
	Channel   Channel `json:"channel"`
	RawScore  float64 `json:"raw_score,omitempty"`
	Score     float64 `json:"score"`
}

// Candidate annotates an evidence item with its rank inside one channel
// bucket during fusion. Candidates live only for the duration of a single
// fuse call.
type Candidate struct {
	ID        string
	Source    string
	BaseScore float64
	Rank      int
	Fused     float64
}

// RetrievalPlan is the source order chosen for one request. It is recomputed
// per request and never cached.
type RetrievalPlan []Channel

// QueryFlags carry the caller's retrieval switches.
type QueryFlags struct {
	UseWeb        bool
	UseVector     bool
	UseKG         bool
	Precision     bool
	OfficialOnly  bool
	DomainProfile string
}

// Query is an immutable retrieval request. Build a new Query whenever text
// or hints change so provenance stays traceable.
type Query struct {
	Text      string
	SessionID string
	Flags     QueryFlags
	Hints     map[string]string
}

func NewQuery(text, sessionID string, flags QueryFlags, hints map[string]string) Query {
	copied := make(map[string]string, len(hints))
	for k, v := range hints {
		copied[k] = v
	}
	return Query{Text: text, SessionID: sessionID, Flags: flags, Hints: copied}
}

// WithText returns a copy of the query carrying new text.
func (q Query) WithText(text string) Query {
	return NewQuery(text, q.SessionID, q.Flags, q.Hints)
}

// Depth controls how aggressively the web stage fans out.
type Depth string

const (
	DepthLight Depth = "LIGHT"
	DepthDeep  Depth = "DEEP"
)

// RetrievalHints are optional per-request overrides accepted by the
// orchestrator.
type RetrievalHints struct {
	Precision     bool
	Depth         Depth
	WebTopK       int
	OfficialOnly  bool
	DomainProfile string
}

// SelectedTerms is the vocabulary produced by LLM term selection. When the
// selector is unavailable the planner falls back to rule-based extraction
// that always yields at least one must term.
type SelectedTerms struct {
	Must     []string `json:"must"`
	Exact    []string `json:"exact"`
	Should   []string `json:"should"`
	Maybe    []string `json:"maybe"`
	Negative []string `json:"negative"`
	Domains  []string `json:"domains"`
	Aliases  []string `json:"aliases"`
}

// ComplexityLevel classifies a query for retrieval depth and stage order.
type ComplexityLevel string

const (
	ComplexitySimple    ComplexityLevel = "SIMPLE"
	ComplexityAmbiguous ComplexityLevel = "AMBIGUOUS"
	ComplexityComplex   ComplexityLevel = "COMPLEX"
)

// Domain labels used by the planner and the snippet filters. Anything the
// detector cannot place lands in GENERAL.
const (
	DomainGeneral   = "GENERAL"
	DomainEducation = "EDUCATION"
)
