package cypher

const generateSystem = "你是一个Cypher专家，正在根据入口节点信息和用户输入，参照schema生成准确无误的Cypher查询语句。" +
	"**注意：查询结果中不可以包含嵌入向量等多余属性**\n" +
	"仅返回Cypher语句。\n" +
	"schema:\n%s"

const generateUser = "入口节点:\n%s\n\n用户输入:\n%s\n\nCypher语句:"

const validateSystem = "你是一位Cypher专家，正在审查一位初级开发人员编写的Cypher语句。你需要根据schema和用户输入，检查如下内容：\n" +
	"* Cypher语句中是否需要包含用户信息作为过滤条件？\n" +
	"* Cypher语句中是否有任何语法错误？\n" +
	"* Cypher语句中的关系方向是否符合schema中的定义？\n" +
	"* Cypher语句中是否漏定义了变量或使用了未定义的变量？\n" +
	"* Cypher语句检索出的内容能否用于回答用户的问题？\n" +
	`以严格JSON格式输出错误信息，比如“{"errors": ["错误1", "错误2"]}”，始终解释schema与Cypher语句之间的差异。` +
	`如果确认没有问题，返回“{"errors": []}”。` + "\n" +
	"schema:\n%s"

const validateUser = "入口节点:\n%s\n\n用户输入:\n%s\n\n待验证的Cypher语句:\n%s"

const correctSystem = "你是一位Cypher专家，正在审查一位初级开发人员编写的Cypher语句。你需要根据schema以及提供的错误信息更正Cypher语句。" +
	"仅返回Cypher语句。\n" +
	"schema:\n%s"

const correctUser = "入口节点:\n%s\n\n用户输入:\n%s\n\n错误信息:\n%s\n\n待更正的Cypher语句:\n%s\n\n更正后的Cypher语句:"

// syntaxErrorPrefix marks report entries produced by the engine rather than the reviewer.
const syntaxErrorPrefix = "语法错误: "

// emptyDraftError is reported when there is no query to review.
const emptyDraftError = "没有生成Cypher语句"
