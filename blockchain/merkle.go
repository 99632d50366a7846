package blockchain

import (
	"crypto/sha256"
)

// MerkleTree 表示一个默克尔树
type MerkleTree struct {
	RootNode *MerkleNode
}

// MerkleNode 表示一个默克尔树节点
type MerkleNode struct {
	Left  *MerkleNode
	Right *MerkleNode
	Data  []byte
}

// NewMerkleTree 从数据序列中创建一个新的默克尔树
// An odd node at any level is paired with itself.
func NewMerkleTree(data [][]byte) *MerkleTree {
	if len(data) == 0 {
		return &MerkleTree{NewMerkleNode(nil, nil, nil)}
	}

	level := make([]*MerkleNode, 0, len(data))
	for _, datum := range data {
		level = append(level, NewMerkleNode(nil, nil, datum))
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]*MerkleNode, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, NewMerkleNode(level[i], level[i+1], nil))
		}
		level = next
	}

	return &MerkleTree{level[0]}
}

// NewMerkleNode 创建一个新的默克尔树节点
func NewMerkleNode(left, right *MerkleNode, data []byte) *MerkleNode {
	node := &MerkleNode{Left: left, Right: right}

	if left == nil && right == nil {
		hash := sha256.Sum256(data)
		node.Data = hash[:]
		return node
	}

	joined := make([]byte, 0, len(left.Data)+len(right.Data))
	joined = append(joined, left.Data...)
	joined = append(joined, right.Data...)
	hash := sha256.Sum256(joined)
	node.Data = hash[:]

	return node
}
