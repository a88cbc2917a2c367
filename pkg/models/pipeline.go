package models

// PipelineState is the complete persisted shape of a pipeline. Storage
// adapters must round-trip it without loss.
type PipelineState struct {
	Version         string  `yaml:"version" json:"version"`
	StartStageID    string  `yaml:"start_stage_id" json:"start_stage_id"`
	TerminalStageID string  `yaml:"terminal_stage_id" json:"terminal_stage_id"`
	Stages          []Stage `yaml:"stages" json:"stages"`
	Leads           []Lead  `yaml:"leads" json:"leads"`
}

// Clone returns a deep copy of the state.
func (p PipelineState) Clone() PipelineState {
	out := p
	out.Stages = make([]Stage, len(p.Stages))
	for i, s := range p.Stages {
		out.Stages[i] = s.Clone()
	}
	out.Leads = make([]Lead, len(p.Leads))
	for i, l := range p.Leads {
		out.Leads[i] = l.Clone()
	}
	return out
}
