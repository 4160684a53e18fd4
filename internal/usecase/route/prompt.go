package route

import (
	"strings"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// labelExamples describes every routable label with example entities.
var labelExamples = map[domain.Label]string{
	domain.LabelCategory1: "一级分类，如“食品饮料”、“家用电器”、“手机”",
	domain.LabelCategory2: "二级分类，如“大家电”、“香水彩妆”",
	domain.LabelCategory3: "三级分类，如“手机”、“香水”、“笔记本”",
	domain.LabelTrademark: "品牌，如“华为”、“索芙特”、“金沙河”",
	domain.LabelSPU:       "商品名称，如“华为Mate 40 pro”",
	domain.LabelSKU:       "单品名称，如“联想（Lenovo） 拯救者Y9000P 2022 16英寸游戏笔记本电脑 i9-12900H RTX3070Ti 钛晶灰”",
	domain.LabelAttr:      "商品属性值，如“70英寸”、“蓝色”、“非有机食品”",
	domain.LabelUser:      "用户ID，如“176”",
}

const systemPrompt = "你是一个智能检索路由Agent。" +
	"现在根据用户输入判断最可能需要的一个或多个标签以及每个标签对应的实体，作为后续Neo4j查询的入口节点\n" +
	"**注意：如果查询与用户相关，需要将用户信息加入入口节点**\n" +
	`以严格JSON格式输出结果，比如“{"outputs": [{"label": "SPU", "entity": "iPhone 16 Pro"}]}”。` +
	"可选节点类型:\n"

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	for _, l := range domain.Labels {
		b.WriteString("- ")
		b.WriteString(string(l))
		b.WriteString(": ")
		b.WriteString(labelExamples[l])
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
