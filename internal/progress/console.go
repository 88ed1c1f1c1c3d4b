package progress

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/apoorvam/goterminal"
	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Console is the default Reporter: a single redrawing terminal line
// carrying step name, substep, percent, and byte progress, backed by
// github.com/apoorvam/goterminal so updates repaint in place rather than
// spamming one line per update.
type Console struct {
	Signal

	mu      sync.Mutex
	writer  *goterminal.Writer
	printer *message.Printer

	step    string
	stepNum int
	stepOf  int
	substep string
	message string
	pct     int
	xferred int64
	total   int64
	started time.Time
	damp    MaxPercent
}

// NewConsole builds a Console reporter writing to stdout.
func NewConsole() *Console {
	return &Console{
		writer:  goterminal.New(os.Stdout),
		printer: message.NewPrinter(language.English),
		started: time.Now(),
		pct:     -1,
	}
}

func (c *Console) StartStep(name string, totalSteps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = name
	c.stepOf = totalSteps
	c.substep = ""
	c.pct = -1
	c.render()
}

func (c *Console) SetMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message = text
	c.render()
}

func (c *Console) SetPercent(pct int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pct < 0 {
		c.pct = -1
	} else {
		c.pct = c.damp.Next(pct)
	}
	c.render()
}

func (c *Console) UpdateBytes(transferred, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xferred, c.total = transferred, total
	c.render()
}

func (c *Console) SetStepCount(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepNum, c.stepOf = current, total
	c.render()
}

func (c *Console) SetSubstep(name string, current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if total > 0 {
		c.substep = fmt.Sprintf("%s (%d/%d)", name, current, total)
	} else {
		c.substep = name
	}
	c.render()
}

func (c *Console) Done(success bool, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Clear()
	elapsed := timeago.English.FormatReference(c.started, time.Now())
	status := "done"
	if !success {
		status = "failed"
	}
	fmt.Fprintf(c.writer, "install %s (started %s): %s\n", status, elapsed, message)
	c.writer.Print()
}

// render must be called with mu held.
func (c *Console) render() {
	c.writer.Clear()
	if c.stepOf > 0 {
		fmt.Fprintf(c.writer, "[%d/%d] %s", c.stepNum, c.stepOf, c.step)
	} else {
		fmt.Fprintf(c.writer, "%s", c.step)
	}
	if c.substep != "" {
		fmt.Fprintf(c.writer, " > %s", c.substep)
	}
	if c.pct >= 0 {
		fmt.Fprintf(c.writer, " %d%%", c.pct)
	}
	if c.total > 0 {
		fmt.Fprintf(c.writer, " (%s / %s bytes)",
			c.printer.Sprintf("%d", c.xferred), c.printer.Sprintf("%d", c.total))
	}
	if c.message != "" {
		fmt.Fprintf(c.writer, " - %s", c.message)
	}
	fmt.Fprintln(c.writer)
	c.writer.Print()
}
