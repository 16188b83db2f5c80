package art

// StackFrame is one level of the descent stack: the node visited at
// that level and the last child byte explored there (0 for prefix
// frames, which have exactly one child).
type StackFrame struct {
	Node Node
	Byte byte
}

// Iterator is a stateful cursor over an ART performing ordered range
// scans. It is bound to one tree for its entire lifetime, is not
// thread-safe, and must not outlive the tree it was positioned
// against. Zero value is a valid, unpositioned iterator.
type Iterator struct {
	currentKey IteratorKey
	nodes      []StackFrame
	lastLeaf   Node

	insideGate  bool
	nestedDepth int
	rowID       [rowIDWidth]byte
}

// NewIterator returns an unpositioned iterator.
func NewIterator() *Iterator {
	return &Iterator{}
}

// CurrentKey exposes the byte path from the root to the iterator's
// current position (excluding any bytes below an open gate). Valid
// once the iterator is positioned.
func (it *Iterator) CurrentKey() []byte {
	return it.currentKey.Bytes()
}

// FindMinimum descends to the smallest leaf in the subtree rooted at
// node, positioning the iterator there. The caller must ensure
// node.HasMetadata() holds, e.g. by checking the tree is non-empty
// before calling; LowerBound handles a possibly-empty root itself.
func (it *Iterator) FindMinimum(node Node) {
	if !node.HasMetadata() {
		panic(newInvariantViolation("FindMinimum: node has no metadata"))
	}

	// Found the minimum.
	if node.IsAnyLeaf() {
		// A fresh descent reads a byte-set leaf from its first byte.
		if bs, ok := node.(*ByteSetLeaf); ok {
			bs.nextIndex = 0
		}
		it.lastLeaf = node
		return
	}

	// We are passing a gate node.
	if node.IsGate() {
		if it.insideGate {
			panic(newInvariantViolation("FindMinimum: nested gate while already inside a gate"))
		}
		it.insideGate = true
		it.nestedDepth = 0
	}

	// Traverse the prefix.
	if node.GetType() == NTypePrefix {
		prefix := node.(*Prefix)
		for _, b := range prefix.Bytes {
			it.currentKey.Push(b)
			if it.insideGate {
				it.rowID[it.nestedDepth] = b
				it.nestedDepth++
			}
		}
		it.nodes = append(it.nodes, StackFrame{Node: node, Byte: 0})
		it.FindMinimum(prefix.Child)
		return
	}

	// Go to the leftmost entry in the current node.
	fanOut, ok := node.(FanOut)
	if !ok {
		panic(newInvariantViolation("FindMinimum: node type %v is not a fan-out node", node.GetType()))
	}
	var b byte
	next, found := fanOut.GetNextChild(&b)
	if !found {
		panic(newInvariantViolation("FindMinimum: internal node has no children"))
	}

	it.currentKey.Push(b)
	if it.insideGate {
		it.rowID[it.nestedDepth] = b
		it.nestedDepth++
	}
	it.nodes = append(it.nodes, StackFrame{Node: node, Byte: b})
	it.FindMinimum(next)
}

// LowerBound positions at the smallest leaf whose full key is >= key
// (if equal) or > key (if !equal), starting the descent at node with
// depth key bytes already consumed by ancestors. Returns false iff no
// such leaf exists in the subtree, including when node is the root of
// an empty tree.
func (it *Iterator) LowerBound(node Node, key ARTKey, equal bool, depth int) bool {
	if !node.HasMetadata() {
		return false
	}

	// We found any leaf node, or a gate.
	if node.IsAnyLeaf() || node.IsGate() {
		if it.insideGate {
			panic(newInvariantViolation("LowerBound: reached leaf/gate while already inside a gate"))
		}
		if it.currentKey.Size() != key.Len() {
			panic(newInvariantViolation("LowerBound: descended to depth %d, expected key length %d", it.currentKey.Size(), key.Len()))
		}
		if !equal && it.currentKey.Contains(key) {
			return it.Next()
		}

		if node.IsGate() {
			it.FindMinimum(node)
		} else {
			it.lastLeaf = node
		}
		return true
	}

	if node.GetType() != NTypePrefix {
		nextByte := key.At(depth)
		fanOut := node.(FanOut)
		b := nextByte
		child, found := fanOut.GetNextChild(&b)

		// The key is greater than any key in this subtree.
		if !found {
			return it.Next()
		}

		it.currentKey.Push(b)
		it.nodes = append(it.nodes, StackFrame{Node: node, Byte: b})

		// We return the minimum because all keys are greater than the lower bound.
		if b > nextByte {
			it.FindMinimum(child)
			return true
		}

		// We recurse into the child.
		return it.LowerBound(child, key, equal, depth+1)
	}

	// Push back all prefix bytes.
	prefix := node.(*Prefix)
	for _, pb := range prefix.Bytes {
		it.currentKey.Push(pb)
	}
	it.nodes = append(it.nodes, StackFrame{Node: node, Byte: 0})

	// We compare the prefix bytes with the key bytes.
	for i, pb := range prefix.Bytes {
		kb := key.At(depth + i)
		// The prefix byte is less than its corresponding key byte: the
		// subsequent node is lesser than the key, so the next node is
		// the lower bound.
		if pb < kb {
			return it.Next()
		}
		// The prefix byte is greater than its corresponding key byte:
		// the subsequent node is greater than the key, so the minimum
		// is the lower bound.
		if pb > kb {
			it.FindMinimum(prefix.Child)
			return true
		}
	}

	// The prefix matches the key. Recurse into the child.
	return it.LowerBound(prefix.Child, key, equal, depth+len(prefix.Bytes))
}

// Next advances last_leaf to the next leaf in ascending key order, or
// returns false if the tree is exhausted.
func (it *Iterator) Next() bool {
	for len(it.nodes) > 0 {
		top := &it.nodes[len(it.nodes)-1]
		if top.Node.IsAnyLeaf() {
			panic(newInvariantViolation("Next: stack top must not be a leaf"))
		}

		if top.Node.GetType() == NTypePrefix {
			it.popNode()
			continue
		}

		if top.Byte == 255 {
			// No more children of this node.
			it.popNode()
			continue
		}

		fanOut := top.Node.(FanOut)
		b := top.Byte + 1
		next, found := fanOut.GetNextChild(&b)
		if !found {
			// No more children of this node.
			it.popNode()
			continue
		}

		it.currentKey.Pop(1)
		it.currentKey.Push(b)
		if it.insideGate {
			it.rowID[it.nestedDepth-1] = b
		}
		top.Byte = b

		it.FindMinimum(next)
		return true
	}
	return false
}

// popNode pops the top stack frame and synchronizes currentKey, rowID,
// and insideGate. The gate flag is cleared before the byte accounting,
// so popping the gate node's own frame never decrements nestedDepth —
// harmless, since nestedDepth is reset to 0 whenever a gate is entered.
func (it *Iterator) popNode() {
	top := it.nodes[len(it.nodes)-1]

	if top.Node.IsGate() {
		if !it.insideGate {
			panic(newInvariantViolation("popNode: popping a gate while not inside a gate"))
		}
		it.insideGate = false
	}

	if top.Node.GetType() != NTypePrefix {
		it.currentKey.Pop(1)
		if it.insideGate {
			it.nestedDepth--
		}
		it.nodes = it.nodes[:len(it.nodes)-1]
		return
	}

	prefix := top.Node.(*Prefix)
	n := len(prefix.Bytes)
	it.currentKey.Pop(n)
	if it.insideGate {
		it.nestedDepth -= n
	}
	it.nodes = it.nodes[:len(it.nodes)-1]
}

// Scan streams row ids from the current position into *rowIDs until an
// upper-bound test fails, len(*rowIDs) would exceed maxCount, or the
// tree is exhausted. Returns true if the scan reached completion with
// respect to upperBound (an empty upperBound means "no upper bound"),
// false if more results remain but maxCount was reached — the caller
// may resume by calling Scan again with room left in *rowIDs.
func (it *Iterator) Scan(upperBound ARTKey, maxCount int, rowIDs *[]RowID, equal bool) bool {
	for {
		// An empty upper bound indicates that no upper bound exists. The
		// test is suppressed inside a gate because currentKey does not
		// reflect row-id bytes there — the key comparison for a
		// gate-descendant leaf was already resolved during positioning.
		if !upperBound.Empty() && !it.insideGate {
			if it.currentKey.GreaterThan(upperBound, equal) {
				return true
			}
		}

		switch it.lastLeaf.GetType() {
		case NTypeLeafInlined:
			if len(*rowIDs)+1 > maxCount {
				return false
			}
			leaf := it.lastLeaf.(*LeafInlined)
			*rowIDs = append(*rowIDs, leaf.GetRowId())

		case NTypeLeaf:
			leaf := it.lastLeaf.(*DeprecatedLeaf)
			if !DeprecatedGetRowIds(leaf, rowIDs, maxCount) {
				return false
			}

		case NType7Leaf, NType15Leaf, NType256Leaf:
			leaf := it.lastLeaf.(*ByteSetLeaf)
			var b byte
			for leaf.GetNextByte(&b) {
				if len(*rowIDs)+1 > maxCount {
					// Hand b back so the next Scan emits it first.
					leaf.nextIndex--
					return false
				}
				it.rowID[rowIDWidth-1] = b
				key := rowIDKey(it.rowID[:])
				*rowIDs = append(*rowIDs, key.GetRowID())
				if b == 255 {
					break
				}
			}

		case NTypePrefixInlined:
			leaf := it.lastLeaf.(*PrefixInlined)
			for i, pb := range leaf.Bytes {
				it.rowID[i+it.nestedDepth] = pb
			}
			key := rowIDKey(it.rowID[:])
			*rowIDs = append(*rowIDs, key.GetRowID())

		default:
			panic(newInvariantViolation("Scan: invalid leaf type for index scan: %v", it.lastLeaf.GetType()))
		}

		if !it.Next() {
			return true
		}
	}
}
