package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/render"
	"github.com/bem130/rubyquiz/internal/session"
)

// runner is the part of the study and test runners the prompt loop drives.
type runner interface {
	Next(ctx context.Context) (*session.Item, error)
	Submit(ctx context.Context, item *session.Item, ans session.Answer) (*session.Outcome, error)
	Done() bool
	Finish(ctx context.Context) (session.Summary, error)
}

const answerHelp = "Enter an option number, add ~ if unsure (2~), ? if you don't know (?2 to name a guess), q to quit."

// errQuit ends the loop at the learner's request.
var errQuit = errors.New("quit")

// parseAnswer reads one line of input for a question with n options.
func parseAnswer(line string, n int) (session.Answer, error) {
	s := strings.TrimSpace(line)
	switch {
	case s == "":
		return session.Answer{}, fmt.Errorf("empty answer")
	case strings.EqualFold(s, "q"):
		return session.Answer{}, errQuit
	case strings.HasPrefix(s, "?"):
		ans := session.Answer{IDK: true, Option: -1}
		if rest := strings.TrimSpace(s[1:]); rest != "" {
			i, err := strconv.Atoi(rest)
			if err != nil || i < 1 || i > n {
				return session.Answer{}, fmt.Errorf("no option %q", rest)
			}
			ans.Option = i - 1
		}
		return ans, nil
	}

	var ans session.Answer
	if strings.HasSuffix(s, "~") || strings.HasPrefix(s, "~") {
		ans.Unsure = true
		s = strings.Trim(s, "~ ")
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 1 || i > n {
		return session.Answer{}, fmt.Errorf("no option %q", s)
	}
	ans.Option = i - 1
	return ans, nil
}

// play asks questions until the runner is done, the input ends or the
// learner quits, then prints the summary.
func play(ctx context.Context, out io.Writer, in io.Reader, r runner, def *quiz.Definition, total int) error {
	rd := render.New()
	scanner := bufio.NewScanner(in)

	for n := 1; !r.Done(); n++ {
		item, err := r.Next(ctx)
		if err != nil {
			if errors.Is(err, problemgen.ErrNoQuestionsAvailable) {
				fmt.Fprintln(out, "No question available.")
				break
			}
			return err
		}

		lipgloss.Fprintln(out, rd.Header(n, total)+" "+rd.Badge(item.Stage))
		lipgloss.Fprintln(out, rd.Question(def, item.Question))

		ans, err := readAnswer(out, scanner, len(item.Question.Answers[0].Options), time.Now())
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		outcome, err := r.Submit(ctx, item, ans)
		if err != nil {
			return err
		}
		lipgloss.Fprintln(out, rd.Feedback(def, item.Question, outcome.Result))
		if tips := rd.Tips(def, item.Question); tips != "" {
			lipgloss.Fprintln(out, tips)
		}
		fmt.Fprintln(out)
	}

	summary, err := r.Finish(ctx)
	if err != nil {
		return err
	}
	lipgloss.Fprintln(out, rd.Summary(summary))
	return nil
}

// readAnswer prompts until a valid answer, quit or end of input.
func readAnswer(out io.Writer, scanner *bufio.Scanner, n int, shown time.Time) (session.Answer, error) {
	for {
		fmt.Fprint(out, "\nYour answer: ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\n(input closed)")
			if err := scanner.Err(); err != nil {
				return session.Answer{}, err
			}
			return session.Answer{}, io.EOF
		}
		ans, err := parseAnswer(scanner.Text(), n)
		if errors.Is(err, errQuit) {
			return ans, err
		}
		if err != nil {
			fmt.Fprintf(out, "%v. %s\n", err, answerHelp)
			continue
		}
		ans.AnswerMs = time.Since(shown).Milliseconds()
		return ans, nil
	}
}
