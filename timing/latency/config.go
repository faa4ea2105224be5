package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds cycle counts for the instruction classes of one AVR
// core family. A zero count marks a class the core does not implement.
type TimingConfig struct {
	// ALULatency covers register arithmetic, logic, moves, I/O register
	// transfers and SREG bit operations. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// WordLatency is the latency of ADIW and SBIW. Default: 2 cycles.
	WordLatency uint64 `json:"word_latency"`

	// MultiplyLatency covers MUL, MULS, MULSU and the fractional
	// multiplies. Zero on cores without a hardware multiplier.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// LoadLatency is the latency of LD and LDD.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency of ST and STD.
	StoreLatency uint64 `json:"store_latency"`

	// DirectLatency is the latency of LDS and STS.
	DirectLatency uint64 `json:"direct_latency"`

	PushLatency uint64 `json:"push_latency"`
	PopLatency  uint64 `json:"pop_latency"`

	// BitIOLatency is the latency of CBI and SBI.
	BitIOLatency uint64 `json:"bit_io_latency"`

	// ExchangeLatency covers XCH, LAS, LAC and LAT.
	ExchangeLatency uint64 `json:"exchange_latency"`

	// ProgramLoadLatency covers LPM and ELPM.
	ProgramLoadLatency uint64 `json:"program_load_latency"`

	// ProgramStoreLatency is charged for SPM. Page programming time is not
	// modelled.
	ProgramStoreLatency uint64 `json:"program_store_latency"`

	// JumpLatency covers RJMP, IJMP and EIJMP.
	JumpLatency uint64 `json:"jump_latency"`

	// LongJumpLatency is the latency of JMP.
	LongJumpLatency uint64 `json:"long_jump_latency"`

	// CallLatency covers RCALL, ICALL and EICALL with a two-byte PC.
	CallLatency uint64 `json:"call_latency"`

	// LongCallLatency is the latency of CALL with a two-byte PC.
	LongCallLatency uint64 `json:"long_call_latency"`

	// ReturnLatency covers RET and RETI with a two-byte PC.
	ReturnLatency uint64 `json:"return_latency"`

	// ExtraPCByteLatency is added to calls and returns on devices that
	// push a three-byte PC. Default: 1 cycle.
	ExtraPCByteLatency uint64 `json:"extra_pc_byte_latency"`

	// BranchTakenLatency and BranchNotTakenLatency time conditional
	// branches. Defaults: 2 and 1 cycles.
	BranchTakenLatency    uint64 `json:"branch_taken_latency"`
	BranchNotTakenLatency uint64 `json:"branch_not_taken_latency"`

	// SkipLatency is the latency of a skip instruction whose condition is
	// false. Each skipped word adds one cycle. Default: 1 cycle.
	SkipLatency uint64 `json:"skip_latency"`

	// DESLatency is the latency of one DES round. XMEGA only.
	DESLatency uint64 `json:"des_latency"`
}

// DefaultTimingConfig returns the instruction timing of a core family as
// listed in the AVR instruction set manual.
func DefaultTimingConfig(core Core) *TimingConfig {
	c := &TimingConfig{
		ALULatency:            1,
		WordLatency:           2,
		MultiplyLatency:       2,
		LoadLatency:           2,
		StoreLatency:          2,
		DirectLatency:         2,
		PushLatency:           2,
		PopLatency:            2,
		BitIOLatency:          2,
		ExchangeLatency:       2,
		ProgramLoadLatency:    3,
		ProgramStoreLatency:   1,
		JumpLatency:           2,
		LongJumpLatency:       3,
		CallLatency:           3,
		LongCallLatency:       4,
		ReturnLatency:         4,
		ExtraPCByteLatency:    1,
		BranchTakenLatency:    2,
		BranchNotTakenLatency: 1,
		SkipLatency:           1,
	}

	switch core {
	case CoreAVR:
		c.MultiplyLatency = 0
	case CoreAVRxm:
		c.StoreLatency = 1
		c.PushLatency = 1
		c.BitIOLatency = 1
		c.CallLatency = 2
		c.LongCallLatency = 3
		c.DESLatency = 1
	case CoreAVRxt:
		c.StoreLatency = 1
		c.PushLatency = 1
		c.BitIOLatency = 1
		c.DirectLatency = 3
		c.CallLatency = 2
		c.LongCallLatency = 3
	case CoreAVRrc:
		c.MultiplyLatency = 0
		c.WordLatency = 0
		c.LoadLatency = 1
		c.StoreLatency = 1
		c.DirectLatency = 1
		c.PushLatency = 1
		c.PopLatency = 3
		c.BitIOLatency = 1
		c.ProgramLoadLatency = 0
		c.ProgramStoreLatency = 0
		c.LongJumpLatency = 0
		c.CallLatency = 4
		c.LongCallLatency = 0
		c.ReturnLatency = 6
	}
	return c
}

// LoadConfig loads a TimingConfig from a JSON file. Fields absent from the
// file keep the defaults of the core.
func LoadConfig(path string, core Core) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig(core)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks the latencies every core implements.
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.JumpLatency == 0 {
		return fmt.Errorf("jump_latency must be > 0")
	}
	if c.CallLatency == 0 || c.ReturnLatency == 0 {
		return fmt.Errorf("call_latency and return_latency must be > 0")
	}
	if c.BranchNotTakenLatency == 0 || c.SkipLatency == 0 {
		return fmt.Errorf("branch_not_taken_latency and skip_latency must be > 0")
	}
	if c.BranchTakenLatency < c.BranchNotTakenLatency {
		return fmt.Errorf("branch_taken_latency must be >= branch_not_taken_latency")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
