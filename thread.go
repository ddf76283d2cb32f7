package twitter

import "log/slog"

// defaultThreadLimit bounds one thread walk.
const defaultThreadLimit = 100

// AssembleThread reconstructs the self-thread containing seed from the tweets
// of its conversation. It walks up to the thread root through same-author
// reply parents, then forward through same-author replies, and stores the
// chronological result (seed included) in seed.Thread, which is also returned.
//
// A result of one tweet means seed is not part of a thread: IsSelfThread is
// cleared and Thread left empty. Walks longer than maxLen are truncated.
func AssembleThread(seed *Tweet, conversation []*Tweet, maxLen int) ([]*Tweet, error) {
	if maxLen <= 0 {
		maxLen = defaultThreadLimit
	}
	byID := make(map[string]*Tweet, len(conversation)+1)
	for _, t := range conversation {
		byID[t.ID] = t
	}
	byID[seed.ID] = seed

	visited := map[string]bool{seed.ID: true}
	cycle := func(id string) error {
		return &ThreadCycleError{ConversationID: seed.ConversationID, TweetID: id}
	}

	var ancestors []*Tweet
	for cur := seed; cur.InReplyToStatusID != ""; {
		parent, ok := byID[cur.InReplyToStatusID]
		if !ok || parent.UserID != seed.UserID {
			break
		}
		if visited[parent.ID] {
			return nil, cycle(parent.ID)
		}
		visited[parent.ID] = true
		ancestors = append(ancestors, parent)
		cur = parent
	}

	thread := make([]*Tweet, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		thread = append(thread, ancestors[i])
	}
	thread = append(thread, seed)

	for cur := seed; ; {
		next := nextInThread(cur, conversation)
		if next == nil {
			break
		}
		if visited[next.ID] {
			return nil, cycle(next.ID)
		}
		if len(thread) >= maxLen {
			slog.Warn("thread truncated",
				slog.String("conversation", seed.ConversationID),
				slog.Int("limit", maxLen))
			break
		}
		visited[next.ID] = true
		thread = append(thread, next)
		cur = next
	}
	if len(thread) > maxLen {
		thread = thread[len(thread)-maxLen:]
	}

	if len(thread) < 2 {
		seed.IsSelfThread = false
		seed.Thread = []*Tweet{}
		return []*Tweet{seed}, nil
	}

	// Members are detached copies, seed included, so the graph stays acyclic.
	seed.IsSelfThread = true
	seed.Thread = make([]*Tweet, len(thread))
	for i, t := range thread {
		seed.Thread[i] = t.detached()
		seed.Thread[i].IsSelfThread = true
	}
	return seed.Thread, nil
}

// nextInThread returns the first same-author reply to cur in conversation order.
func nextInThread(cur *Tweet, conversation []*Tweet) *Tweet {
	for _, t := range conversation {
		if t.ID != cur.ID && t.InReplyToStatusID == cur.ID && t.UserID == cur.UserID {
			return t
		}
	}
	return nil
}

// linkReplies attaches each tweet's reply parent when the parent is part of
// the same conversation.
func linkReplies(conversation []*Tweet) {
	byID := make(map[string]*Tweet, len(conversation))
	for _, t := range conversation {
		byID[t.ID] = t
	}
	for _, t := range conversation {
		if t.InReplyToStatusID == "" || t.InReplyToStatus != nil {
			continue
		}
		if parent, ok := byID[t.InReplyToStatusID]; ok && parent != t {
			t.InReplyToStatus = parent.detached()
		}
	}
}

// threadCandidate reports whether seed looks like part of a self-thread: the
// upstream SelfThread marker, or a same-author reply edge touching it.
func threadCandidate(seed *Tweet, conversation []*Tweet) bool {
	if seed.IsSelfThread {
		return true
	}
	for _, t := range conversation {
		if t.UserID != seed.UserID || t.ID == seed.ID {
			continue
		}
		if t.InReplyToStatusID == seed.ID || seed.InReplyToStatusID == t.ID {
			return true
		}
	}
	return false
}
