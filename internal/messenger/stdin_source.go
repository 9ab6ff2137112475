package messenger

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// StdinSource turns terminal input into chat updates, one message per
// line. Lines normally come from the operator; a "#<userID> " prefix
// impersonates another user, which is handy for trying registration
// flows locally.
type StdinSource struct {
	operatorID   int64
	operatorChat int64
	out          chan Update
}

func NewStdinSource(operatorID, operatorChat int64) *StdinSource {
	s := &StdinSource{
		operatorID:   operatorID,
		operatorChat: operatorChat,
		out:          make(chan Update),
	}

	go s.readLoop()

	return s
}

func (s *StdinSource) Updates() <-chan Update {
	return s.out
}

func (s *StdinSource) readLoop() {
	defer close(s.out)

	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		userID := s.operatorID
		username := "operator"

		if strings.HasPrefix(line, "#") {
			head, rest, ok := strings.Cut(line[1:], " ")
			if ok {
				if id, err := strconv.ParseInt(head, 10, 64); err == nil {
					userID = id
					username = "user" + head
					line = rest
				}
			}
		}

		s.out <- Update{
			ChatID:   s.operatorChat,
			UserID:   userID,
			Username: username,
			Text:     line,
			Private:  true,
		}
	}
}
