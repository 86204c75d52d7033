package mm

// InitStackLayout is what BuildInitStack hands back so the caller (exec)
// can fill in a0..a3 of the fresh Trap Context per spec.md 4.7 step 4.
type InitStackLayout struct {
	SP       uint64
	Argc     uint64
	ArgvBase uint64
	EnvpBase uint64
	AuxvBase uint64
}

// BuildInitStack lays out the exec init vector below top, per spec.md
// 4.7 step 3 and section 6's "Init-stack layout": from high to low
// address, env strings, arg strings, the "RISC-V64" platform string
// (word-aligned), 16 zero bytes standing in for AT_RANDOM, the aux
// array terminated by AT_NULL, envp[] (null-terminated), argv[]
// (null-terminated), then argc. aux's AT_PLATFORM/AT_RANDOM/AT_EXECFN
// entries are patched to point at the strings this function writes,
// since mm.FromELF built them before any stack content existed.
func BuildInitStack(ms *MemorySet, top uint64, aux []AuxEntry, argv, envp []string) (InitStackLayout, error) {
	sp := top

	writeStr := func(s string) (uint64, error) {
		b := append([]byte(s), 0)
		sp -= uint64(len(b))
		if err := ms.CopyOut(sp, b); err != nil {
			return 0, err
		}
		return sp, nil
	}

	envPtrs := make([]uint64, len(envp))
	for i := len(envp) - 1; i >= 0; i-- {
		p, err := writeStr(envp[i])
		if err != nil {
			return InitStackLayout{}, err
		}
		envPtrs[i] = p
	}
	argvPtrs := make([]uint64, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		p, err := writeStr(argv[i])
		if err != nil {
			return InitStackLayout{}, err
		}
		argvPtrs[i] = p
	}

	platformAddr, err := writeStr("RISC-V64")
	if err != nil {
		return InitStackLayout{}, err
	}
	sp &^= 7

	sp -= 16
	randomAddr := sp
	if err := ms.CopyOut(sp, make([]byte, 16)); err != nil {
		return InitStackLayout{}, err
	}
	sp &^= 7

	patched := append([]AuxEntry(nil), aux...)
	var execfn uint64
	if len(argvPtrs) > 0 {
		execfn = argvPtrs[0]
	}
	for i := range patched {
		switch patched[i].Tag {
		case atPlatform:
			patched[i].Val = platformAddr
		case atRandom:
			patched[i].Val = randomAddr
		case atExecfn:
			patched[i].Val = execfn
		}
	}
	patched = append(patched, AuxEntry{Tag: atNull, Val: 0})

	sp -= uint64(len(patched) * 16)
	auxBase := sp
	for i, e := range patched {
		if err := ms.WriteU64(auxBase+uint64(i*16), e.Tag); err != nil {
			return InitStackLayout{}, err
		}
		if err := ms.WriteU64(auxBase+uint64(i*16)+8, e.Val); err != nil {
			return InitStackLayout{}, err
		}
	}

	sp -= uint64((len(envPtrs) + 1) * 8)
	envpBase := sp
	for i, p := range envPtrs {
		if err := ms.WriteU64(envpBase+uint64(i*8), p); err != nil {
			return InitStackLayout{}, err
		}
	}
	if err := ms.WriteU64(envpBase+uint64(len(envPtrs)*8), 0); err != nil {
		return InitStackLayout{}, err
	}

	sp -= uint64((len(argvPtrs) + 1) * 8)
	argvBase := sp
	for i, p := range argvPtrs {
		if err := ms.WriteU64(argvBase+uint64(i*8), p); err != nil {
			return InitStackLayout{}, err
		}
	}
	if err := ms.WriteU64(argvBase+uint64(len(argvPtrs)*8), 0); err != nil {
		return InitStackLayout{}, err
	}

	sp -= 8
	if err := ms.WriteU64(sp, uint64(len(argv))); err != nil {
		return InitStackLayout{}, err
	}

	return InitStackLayout{
		SP:       sp,
		Argc:     uint64(len(argv)),
		ArgvBase: argvBase,
		EnvpBase: envpBase,
		AuxvBase: auxBase,
	}, nil
}
