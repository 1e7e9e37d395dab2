package model

// Context carries one run's inputs: the loaded desired-state document and the
// tool configuration. It is handed to the engine for the duration of a single
// reconciliation and not shared between runs.
type Context struct {
	State  *DesiredState
	Config *Config
}

func NewContext(state *DesiredState, cfg *Config) *Context {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Context{
		State:  state,
		Config: cfg,
	}
}

func (c *Context) GetState() *DesiredState {
	return c.State
}

func (c *Context) GetConfig() *Config {
	return c.Config
}
