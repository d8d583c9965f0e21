package architecture

const (
	// Minimum instruction granularity.  All in-order distances are measured
	// in units of InstructionSize bytes.
	InstructionSize        = 16
	CompactInstructionSize = 8

	// Bytes appended after the linked code so that the instruction prefetcher
	// never runs off the end of the buffer.
	PrefetchPadSize = 64
)

func NumInstructions(byteSize int) int {
	return (byteSize + InstructionSize - 1) / InstructionSize
}

func AlignedSize(byteSize int) int {
	return NumInstructions(byteSize) * InstructionSize
}
