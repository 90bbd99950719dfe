package weighted

import "fmt"

// Picker 是一个基于树状数组(Fenwick tree)的加权随机抽样结构。
// 支持O(log n)的单点权重更新、前缀和查询和按前缀和定位。
type Picker struct {
	tree []float64 // 1-based树状数组
	size int
}

// NewPicker 创建一个容量为size的空抽样器。
func NewPicker(size int) (*Picker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("抽样器容量必须为正数")
	}
	return &Picker{
		tree: make([]float64, size+1),
		size: size,
	}, nil
}

// NewPickerFromWeights 用给定的权重数组构建抽样器。
func NewPickerFromWeights(weights []float64) (*Picker, error) {
	p, err := NewPicker(len(weights))
	if err != nil {
		return nil, err
	}
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("索引 %d 的权重为负数", i)
		}
		if err := p.Update(i, w); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Size 返回抽样器的容量。
func (p *Picker) Size() int {
	return p.size
}

// Update 将索引index的权重调整为value。
func (p *Picker) Update(index int, value float64) error {
	if index < 0 || index >= p.size {
		return fmt.Errorf("索引 %d 超出范围 [0, %d)", index, p.size)
	}
	delta := value - p.Weight(index)
	for i := index + 1; i <= p.size; i += i & (-i) {
		p.tree[i] += delta
	}
	return nil
}

// Weight 返回索引index的当前权重。
func (p *Picker) Weight(index int) float64 {
	if index < 0 || index >= p.size {
		return 0
	}
	return p.prefixSum(index+1) - p.prefixSum(index)
}

// TotalWeight 返回全部权重之和。
func (p *Picker) TotalWeight() float64 {
	return p.prefixSum(p.size)
}

// prefixSum 返回前n个元素的权重和 (n为1-based个数)。
func (p *Picker) prefixSum(n int) float64 {
	sum := 0.0
	for i := n; i > 0; i -= i & (-i) {
		sum += p.tree[i]
	}
	return sum
}

// Find 返回第一个使前缀和(含自身)大于等于value的索引，用于加权随机抽样。
// 调用方应传入 [0, TotalWeight()] 区间内的随机数。
func (p *Picker) Find(value float64) (int, error) {
	total := p.TotalWeight()
	if value < 0 || value > total {
		return -1, fmt.Errorf("查找值 %f 超出总权重范围 [0, %f]", value, total)
	}

	// 沿树状数组的隐式二叉结构下降
	pos := 0
	bit := highestBit(p.size)
	for ; bit > 0; bit >>= 1 {
		next := pos + bit
		if next <= p.size && p.tree[next] < value {
			value -= p.tree[next]
			pos = next
		}
	}
	if pos >= p.size {
		pos = p.size - 1
	}
	return pos, nil
}

func highestBit(n int) int {
	b := 1
	for b<<1 <= n {
		b <<= 1
	}
	return b
}
