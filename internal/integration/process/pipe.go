package process

// pipePair is one unidirectional pipe. A half is invalidHandle when it has
// not been opened or has already been closed.
type pipePair struct {
	r, w sysHandle
}

// pipeTriple holds the three pipes created for one spawn.
//
// The child side is stdin.r, stdout.w and stderr.w. Everything else stays
// with the parent and ends up in the Record.
type pipeTriple struct {
	stdin, stdout, stderr pipePair
}

func newPipeTriple() *pipeTriple {
	return &pipeTriple{
		stdin:  pipePair{r: invalidHandle, w: invalidHandle},
		stdout: pipePair{r: invalidHandle, w: invalidHandle},
		stderr: pipePair{r: invalidHandle, w: invalidHandle},
	}
}

// open creates all three pipes. On failure the pipes created so far are
// still recorded in t so closeAll can release them.
func (t *pipeTriple) open() error {
	for _, p := range []*pipePair{&t.stdin, &t.stdout, &t.stderr} {
		r, w, err := openPipe()
		if err != nil {
			return err
		}
		p.r, p.w = r, w
	}
	return nil
}

// childSide returns the halves the child inherits, in fd 0, 1, 2 order.
func (t *pipeTriple) childSide() []sysHandle {
	return []sysHandle{t.stdin.r, t.stdout.w, t.stderr.w}
}

// parentSide returns the halves kept by the caller, in stdin, stdout,
// stderr order.
func (t *pipeTriple) parentSide() []sysHandle {
	return []sysHandle{t.stdin.w, t.stdout.r, t.stderr.r}
}

// closeChild closes the child-side halves in the parent.
func (t *pipeTriple) closeChild() {
	closeHalf(&t.stdin.r)
	closeHalf(&t.stdout.w)
	closeHalf(&t.stderr.w)
}

// closeParent closes the parent-side halves.
func (t *pipeTriple) closeParent() {
	closeHalf(&t.stdin.w)
	closeHalf(&t.stdout.r)
	closeHalf(&t.stderr.r)
}

func (t *pipeTriple) closeAll() {
	t.closeChild()
	t.closeParent()
}

// record builds the endpoint part of a Record from the parent side.
func (t *pipeTriple) record(h Handle) Record {
	return Record{
		Handle: h,
		Stdin:  Endpoint{raw: uintptr(t.stdin.w)},
		Stdout: Endpoint{raw: uintptr(t.stdout.r)},
		Stderr: Endpoint{raw: uintptr(t.stderr.r)},
	}
}

func closeHalf(h *sysHandle) {
	if *h == invalidHandle {
		return
	}
	_ = closeSys(*h)
	*h = invalidHandle
}
