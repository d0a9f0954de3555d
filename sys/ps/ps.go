// Package ps reports thread and stack statistics.
package ps

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/inhies/go-bytesize"

	"omibyte.io/riot/core/thread"
)

// StackUsed returns how many bytes of a canary-filled stack have been
// written so far.
func StackUsed(stack []byte, size int) int {
	if size > len(stack) {
		size = len(stack)
	}
	return size - thread.MeasureStackFree(stack[:size])
}

// PrintStackUsageMetric prints the high-water mark of one thread stack in the
// format test harnesses parse.
func PrintStackUsageMetric(w io.Writer, name string, stack []byte, size int) error {
	_, err := fmt.Fprintf(w, "{\"threads\": [{\"name\": \"%s\", \"stack_size\": %d, \"stack_used\": %d}]}\n",
		name, size, StackUsed(stack, size))
	return err
}

// List prints one line per thread. Stack usage is only known for threads
// created with the stack test flag.
func List(w io.Writer, threads []thread.Info) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintln(tw, "pid\tname\tstate\tprio\tstack\tused\tfree")

	var total, used int
	for _, t := range threads {
		usedStr, freeStr := "?", "?"
		if t.StackTest {
			usedStr = formatSize(t.StackSize - t.StackFree)
			freeStr = formatSize(t.StackFree)
			used += t.StackSize - t.StackFree
		}
		total += t.StackSize
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			t.PID, t.Name, t.Status, t.Priority, formatSize(t.StackSize), usedStr, freeStr)
	}
	fmt.Fprintf(tw, "\tSUM\t\t\t%s\t%s\t\n", formatSize(total), formatSize(used))
	return tw.Flush()
}

func formatSize(n int) string {
	return bytesize.New(float64(n)).String()
}
