package builder

type Options struct {
	Board       string
	App         string
	Environment Env

	// Capabilities added to or removed from the board profile.
	Enable  []string
	Disable []string

	// Stdio overrides the stdio backend of the board.
	Stdio string

	// Stack sizes such as "2KB". Empty means the board default.
	IdleStackSize string
	MainStackSize string

	Version string
	// Args is the command line passed to main on hosted boards, split like a
	// shell would.
	Args string
}
