package console

import (
	"fmt"
	"io"
	"os"

	"github.com/comoco/mysqldump/jobresult"
)

type Console struct {
	out io.Writer
}

func New() *Console {
	return &Console{out: os.Stdout}
}

func NewWithWriter(out io.Writer) *Console {
	return &Console{out: out}
}

func (console *Console) Notify(results []*jobresult.JobResult) error {
	for _, result := range results {
		if _, err := fmt.Fprintln(console.out, result.String()); err != nil {
			return err
		}
	}

	return nil
}
