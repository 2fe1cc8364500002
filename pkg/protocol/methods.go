package protocol

// AgentCLIParams is the invocation contract for the agent binary: the
// only wire-compatibility surface the core is stuck with (spec §6).
// A session host builds the argv for its agent subprocess from this.
type AgentCLIParams struct {
	// Binary is the executable path or name (resolved via PATH).
	Binary string `json:"binary"`

	// Args are extra arguments appended after the contract flags
	// below, in the order the config supplies them.
	Args []string `json:"args,omitempty"`

	// MaxTurns bounds the agent's internal turn count for a single
	// dispatch. Zero means "use the agent's own default".
	MaxTurns int `json:"max_turns,omitempty"`

	// AllowedTools is the allow-listed tool set passed to the agent.
	// A transport granting shell-equivalent tools must be gated by an
	// access list per spec §7.
	AllowedTools []string `json:"allowed_tools,omitempty"`

	// SystemPromptAppend is appended to the agent's system prompt.
	SystemPromptAppend string `json:"system_prompt_append,omitempty"`

	// WorkingDir records the agent's working directory. The session
	// host spawns the agent in HostConfig.WorkingDir; this field is not
	// read when building the agent command.
	WorkingDir string `json:"working_dir,omitempty"`
}

// HostConfig is the single JSON configuration passed to a freshly
// spawned session host process, through the GOCLAW_SESSION_HOST_CONFIG
// environment variable rather than argv (spec §4.2 Startup).
type HostConfig struct {
	Channel    string         `json:"channel"`
	SocketPath string         `json:"socket_path"`
	PIDFile    string         `json:"pid_file"`
	WorkingDir string         `json:"working_dir"`
	Agent      AgentCLIParams `json:"agent"`
	ResumeID   string         `json:"resume_id,omitempty"`
	StderrLog  string         `json:"stderr_log,omitempty"`
}
